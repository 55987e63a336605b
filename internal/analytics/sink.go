// Package analytics records usage and quality events emitted by the
// pipeline. Recording is strictly best-effort: a sink must never block the
// request path and its failures are logged locally, never propagated.
package analytics

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"promptforge/internal/logging"
)

// Event is one construction's usage/quality record.
type Event struct {
	PromptID     string
	TemplateIDs  []string
	QualityScore float64
	TokenCount   int
	Elapsed      time.Duration
}

// Sink consumes construction events.
type Sink interface {
	// Record accepts an event. Implementations must return quickly and
	// must not fail the caller; errors are for local logging only.
	Record(event Event)
}

// NopSink discards events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}

// LogSink writes events to the analytics log.
type LogSink struct{}

// NewLogSink creates a sink that logs events.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Record implements Sink.
func (s *LogSink) Record(event Event) {
	logging.Get(logging.CategoryAnalytics).Infow("prompt constructed",
		"prompt_id", event.PromptID,
		"templates", strings.Join(event.TemplateIDs, ","),
		"quality", event.QualityScore,
		"tokens", event.TokenCount,
		"elapsed_ms", event.Elapsed.Milliseconds(),
	)
}

const sinkSchema = `
	CREATE TABLE IF NOT EXISTS prompt_events (
		prompt_id TEXT NOT NULL,
		template_ids TEXT,
		quality_score REAL NOT NULL,
		token_count INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteSink persists events asynchronously. Record hands the event to a
// buffered channel and returns immediately; when the buffer is full the
// event is dropped with a warning. Close drains what was accepted.
type SQLiteSink struct {
	db     *sql.DB
	events chan Event
	done   chan struct{}
}

// NewSQLiteSink opens an event database and starts the writer goroutine.
func NewSQLiteSink(path string, buffer int) (*SQLiteSink, error) {
	if buffer <= 0 {
		buffer = 128
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db %s: %w", path, err)
	}
	if _, err := db.Exec(sinkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure analytics schema: %w", err)
	}

	s := &SQLiteSink{
		db:     db,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record implements Sink without blocking.
func (s *SQLiteSink) Record(event Event) {
	select {
	case s.events <- event:
	default:
		logging.Get(logging.CategoryAnalytics).Warnf(
			"analytics buffer full, dropping event %s", event.PromptID)
	}
}

func (s *SQLiteSink) run() {
	defer close(s.done)
	for event := range s.events {
		if err := s.write(event); err != nil {
			logging.Get(logging.CategoryAnalytics).Warnf(
				"failed to record event %s: %v", event.PromptID, err)
		}
	}
}

func (s *SQLiteSink) write(event Event) error {
	_, err := s.db.Exec(`
		INSERT INTO prompt_events (prompt_id, template_ids, quality_score, token_count, elapsed_ms)
		VALUES (?, ?, ?, ?, ?)`,
		event.PromptID,
		strings.Join(event.TemplateIDs, ","),
		event.QualityScore,
		event.TokenCount,
		event.Elapsed.Milliseconds(),
	)
	return err
}

// Close stops accepting events, drains the buffer, and closes the database.
func (s *SQLiteSink) Close() error {
	close(s.events)
	<-s.done
	return s.db.Close()
}
