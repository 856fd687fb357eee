package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"grid-executor/internal/model"
	"grid-executor/internal/repository"
)

// EventField marks entries that belong in the journal.
const EventField = "event"

// Setup configures the global logrus logger. With a file path, output goes to stdout and the file.
// The returned closer releases the file and is never nil.
func Setup(level, file string) (io.Closer, error) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})

	if file == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// JournalHook copies entries carrying an "event" field into the event journal.
type JournalHook struct {
	Repo    repository.EventRepository
	Timeout time.Duration
}

func NewJournalHook(repo repository.EventRepository) *JournalHook {
	return &JournalHook{Repo: repo, Timeout: 2 * time.Second}
}

func (h *JournalHook) Levels() []log.Level {
	return log.AllLevels
}

func (h *JournalHook) Fire(entry *log.Entry) error {
	name, ok := entry.Data[EventField].(string)
	if !ok || name == "" {
		return nil
	}

	ev := &model.JournalEvent{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Event:   name,
		Message: entry.Message,
		Fields:  make(map[string]interface{}, len(entry.Data)),
	}
	for k, v := range entry.Data {
		switch k {
		case EventField:
			continue
		case "symbol":
			ev.Symbol = fmt.Sprint(v)
		}
		ev.Fields[k] = plain(v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	return h.Repo.Insert(ctx, ev)
}

// plain turns values the JSON encoder would render badly into text.
func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
