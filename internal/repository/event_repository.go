package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"grid-executor/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schemas = map[string]string{
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS grid_events (
			id         BIGSERIAL PRIMARY KEY,
			created_at BIGINT NOT NULL,
			level      TEXT   NOT NULL,
			event      TEXT   NOT NULL,
			symbol     TEXT   NOT NULL DEFAULT '',
			message    TEXT   NOT NULL,
			fields     TEXT   NOT NULL DEFAULT '{}'
		)`,
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS grid_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			level      TEXT    NOT NULL,
			event      TEXT    NOT NULL,
			symbol     TEXT    NOT NULL DEFAULT '',
			message    TEXT    NOT NULL,
			fields     TEXT    NOT NULL DEFAULT '{}'
		)`,
}

// EventRepository описывает журнал событий исполнения.
type EventRepository interface {
	Migrate(ctx context.Context) error
	Insert(ctx context.Context, ev *model.JournalEvent) error
	Recent(ctx context.Context, limit int) ([]*model.JournalEvent, error)
}

type eventRepository struct {
	db     *sql.DB
	driver string
}

// Open connects to the journal database. SQLite in-memory databases are pinned to one connection,
// otherwise every pooled connection would see its own empty database.
func Open(driver, dsn string) (*sql.DB, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, errors.Errorf("unsupported journal driver %q", driver)
	}
	if driver == DriverSQLite && dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "journal unreachable")
	}
	return db, nil
}

// NewEventRepository возвращает журнал поверх открытой базы.
func NewEventRepository(db *sql.DB, driver string) EventRepository {
	return &eventRepository{db: db, driver: driver}
}

func (r *eventRepository) Migrate(ctx context.Context) error {
	ddl, ok := schemas[r.driver]
	if !ok {
		return errors.Errorf("unsupported journal driver %q", r.driver)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "Migrate")
	}
	return nil
}

// Insert добавляет событие в журнал и заполняет его ID.
func (r *eventRepository) Insert(ctx context.Context, ev *model.JournalEvent) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	fields := []byte("{}")
	if len(ev.Fields) > 0 {
		var err error
		if fields, err = json.Marshal(ev.Fields); err != nil {
			return errors.Wrap(err, "Insert: encode fields")
		}
	}

	query := `
		INSERT INTO grid_events (created_at, level, event, symbol, message, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, ev.Time.UnixMilli(), ev.Level, ev.Event, ev.Symbol, ev.Message, string(fields)).
		Scan(&ev.ID)
	if err != nil {
		return errors.Wrap(err, "Insert")
	}
	return nil
}

// Recent возвращает последние события, новые первыми.
func (r *eventRepository) Recent(ctx context.Context, limit int) ([]*model.JournalEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, created_at, level, event, symbol, message, fields
		FROM grid_events
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "Recent")
	}
	defer rows.Close()

	var events []*model.JournalEvent
	for rows.Next() {
		var (
			ev     model.JournalEvent
			millis int64
			fields string
		)
		if err := rows.Scan(&ev.ID, &millis, &ev.Level, &ev.Event, &ev.Symbol, &ev.Message, &fields); err != nil {
			return nil, errors.Wrap(err, "Recent: scan")
		}
		ev.Time = time.UnixMilli(millis)
		if fields != "" && fields != "{}" {
			if err := json.Unmarshal([]byte(fields), &ev.Fields); err != nil {
				return nil, errors.Wrap(err, "Recent: decode fields")
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
