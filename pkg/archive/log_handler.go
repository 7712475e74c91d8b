package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Event is a warning or error logged while a run was being archived.
type Event struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogHandler is a slog.Handler that forwards every record to next and also
// stores warnings and errors in the run_events table under one run ID.
type LogHandler struct {
	next  slog.Handler
	w     *Writer
	runID string
	attrs []slog.Attr
}

// LogHandler wraps next so that warnings and errors logged during the run
// are archived alongside its graph.
func (w *Writer) LogHandler(next slog.Handler, runID string) *LogHandler {
	return &LogHandler{next: next, w: w, runID: runID}
}

// Enabled implements slog.Handler
func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn || h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < slog.LevelWarn {
		return nil
	}

	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = attrValue(a.Value)
		return true
	})
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		attrsJSON = []byte("{}")
	}

	_, err = h.w.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO run_events (id, run_id, timestamp, level, message, attributes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), h.runID, r.Time.UTC(), r.Level.String(), r.Message, string(attrsJSON))
	if err != nil {
		// the console log already has the record
		fmt.Fprintf(os.Stderr, "failed to archive log event: %v\n", err)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		next:  h.next.WithAttrs(attrs),
		w:     h.w,
		runID: h.runID,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

// WithGroup implements slog.Handler
func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		next:  h.next.WithGroup(name),
		w:     h.w,
		runID: h.runID,
		attrs: h.attrs,
	}
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = attrValue(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

// Events returns the archived log events of runID in the order they were logged.
func (w *Writer) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT timestamp, level, message, CAST(attributes AS VARCHAR)
		FROM run_events WHERE run_id = ? ORDER BY timestamp, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			attrs string
		)
		if err := rows.Scan(&e.Time, &e.Level, &e.Message, &attrs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode event attributes: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
