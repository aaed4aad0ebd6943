// Package report keeps the per-tool results log of a repair run and renders it as JSON and text.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/storage"
	"github.com/google/uuid"
)

// Change is one field whose value differs between the original and repaired record
type Change struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Entry is the logged result of one tool
type Entry struct {
	LineNumber int       `json:"line_number"`
	ToolName   string    `json:"tool_name"`
	Timestamp  time.Time `json:"timestamp"`
	Changed    bool      `json:"changed"`
	Summary    string    `json:"summary"`
	Details    []string  `json:"details"`
	Changes    []Change  `json:"changes,omitempty"`
}

// Summary aggregates a run
type Summary struct {
	RunID           string    `json:"run_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalProcessed  int       `json:"total_processed"`
	TotalChanged    int       `json:"total_changed"`
	TotalUnchanged  int       `json:"total_unchanged"`
}

// Log is the complete results log
type Log struct {
	Summary Summary `json:"summary"`
	Results []Entry `json:"results"`
}

// Logger accumulates entries for one run. It is not safe for concurrent use.
type Logger struct {
	runID   string
	start   time.Time
	entries []Entry
	now     func() time.Time
}

// NewLogger starts a run log
func NewLogger() *Logger {
	return &Logger{
		runID: uuid.New().String(),
		start: time.Now(),
		now:   time.Now,
	}
}

// RunID identifies the run
func (l *Logger) RunID() string {
	return l.runID
}

// LogResult records the repair outcome of one tool
func (l *Logger) LogResult(line int, tool string, result linkaudit.RepairResult) {
	entry := Entry{
		LineNumber: line,
		ToolName:   tool,
		Timestamp:  l.now(),
		Changed:    result.Changed,
		Summary:    result.Summary,
		Details:    append([]string{}, result.Details...),
	}
	if result.Changed {
		entry.Changes = diff(result.Original, result.Record)
	}
	l.entries = append(l.entries, entry)
}

// LogBatch records every repair of a batch run
func (l *Logger) LogBatch(res linkaudit.BatchResult) {
	for _, r := range res.Repairs {
		l.LogResult(r.Line, r.Tool, r.Result)
	}
}

// diff lists the columns whose values changed, in the original column order
func diff(original, updated *linkaudit.ToolRecord) []Change {
	if original == nil || updated == nil {
		return nil
	}
	var changes []Change
	for _, col := range original.Columns() {
		if oldV, newV := original.Get(col), updated.Get(col); oldV != newV {
			changes = append(changes, Change{Field: col, OldValue: oldV, NewValue: newV})
		}
	}
	return changes
}

// Log returns the results log with a summary computed now
func (l *Logger) Log() Log {
	end := l.now()
	s := Summary{
		RunID:           l.runID,
		StartTime:       l.start,
		EndTime:         end,
		DurationSeconds: end.Sub(l.start).Seconds(),
		TotalProcessed:  len(l.entries),
	}
	for _, e := range l.entries {
		if e.Changed {
			s.TotalChanged++
		}
	}
	s.TotalUnchanged = s.TotalProcessed - s.TotalChanged
	return Log{Summary: s, Results: append([]Entry{}, l.entries...)}
}

// WriteJSON renders the log as indented JSON
func (log Log) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	return nil
}

// WriteText renders the human-readable log
func (log Log) WriteText(w io.Writer) error {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nAI TOOLS VALIDATION LOG\n%s\n\n", rule, rule)

	s := log.Summary
	fmt.Fprintf(&b, "SUMMARY\n%s\n", thin)
	fmt.Fprintf(&b, "Run ID:            %s\n", s.RunID)
	fmt.Fprintf(&b, "Start Time:        %s\n", s.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "End Time:          %s\n", s.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:          %.2f seconds\n", s.DurationSeconds)
	fmt.Fprintf(&b, "Total Processed:   %d\n", s.TotalProcessed)
	fmt.Fprintf(&b, "Total Changed:     %d\n", s.TotalChanged)
	fmt.Fprintf(&b, "Total Unchanged:   %d\n\n\n", s.TotalUnchanged)

	fmt.Fprintf(&b, "DETAILED RESULTS\n%s\n\n", rule)
	for _, e := range log.Results {
		fmt.Fprintf(&b, "Line #%d: %s\n%s\n", e.LineNumber, e.ToolName, thin)
		changed := "NO"
		if e.Changed {
			changed = "YES"
		}
		fmt.Fprintf(&b, "Changed: %s\n", changed)
		fmt.Fprintf(&b, "Summary: %s\n", e.Summary)
		fmt.Fprintf(&b, "Timestamp: %s\n\n", e.Timestamp.Format(time.RFC3339))

		if len(e.Details) > 0 {
			b.WriteString("Details:\n")
			for _, d := range e.Details {
				fmt.Fprintf(&b, "  • %s\n", d)
			}
			b.WriteString("\n")
		}
		if len(e.Changes) > 0 {
			b.WriteString("Changes Made:\n")
			for _, c := range e.Changes {
				fmt.Fprintf(&b, "  Field: %s\n    Old: %s\n    New: %s\n", c.Field, c.OldValue, c.NewValue)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Saved holds the keys the two renderings were stored under
type Saved struct {
	JSONKey string
	TextKey string
}

// Save stores <prefix>-validation-log-<YYYYMMDD-HHMMSS>.json and .txt in sink
func (l *Logger) Save(ctx context.Context, sink storage.Sink, prefix string) (Saved, error) {
	log := l.Log()
	name := fmt.Sprintf("validation-log-%s", log.Summary.EndTime.Format("20060102-150405"))
	if prefix != "" {
		name = prefix + "-" + name
	}

	var js, txt bytes.Buffer
	if err := log.WriteJSON(&js); err != nil {
		return Saved{}, err
	}
	if err := log.WriteText(&txt); err != nil {
		return Saved{}, err
	}

	var saved Saved
	var err error
	if saved.JSONKey, err = sink.Save(ctx, name+".json", js.Bytes()); err != nil {
		return Saved{}, fmt.Errorf("failed to save json log: %w", err)
	}
	if saved.TextKey, err = sink.Save(ctx, name+".txt", txt.Bytes()); err != nil {
		return saved, fmt.Errorf("failed to save text log: %w", err)
	}
	return saved, nil
}
