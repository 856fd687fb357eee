package model

import "time"

// JournalEvent - запись журнала событий (размещение, отмена, обновления стрима).
// The journal is append-only; nothing is ever restored from it.
type JournalEvent struct {
	ID      int64                  `json:"id"`
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Event   string                 `json:"event"`
	Symbol  string                 `json:"symbol,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}
