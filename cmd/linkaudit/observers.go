package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/briandowns/spinner"
	"github.com/docutag/linkaudit"
)

// logObserver writes audit events as leveled log lines
type logObserver struct {
	logger *slog.Logger
}

func (o logObserver) OnEvent(e linkaudit.Event) {
	attrs := []any{"line", e.Line, "tool", e.Tool}
	if e.HasField {
		attrs = append(attrs, "field", e.Field.Column())
	}
	if e.URL != "" {
		attrs = append(attrs, "url", e.URL)
	}

	switch e.Kind {
	case linkaudit.EventToolStarted:
		o.logger.Info("processing tool", append(attrs, "operation", e.Detail)...)
	case linkaudit.EventToolFinished:
		attrs = append(attrs, "duration", e.Duration.Round(time.Millisecond))
		if e.Detail != "" {
			attrs = append(attrs, "summary", e.Detail)
		}
		o.logger.Info("tool done", attrs...)
	case linkaudit.EventValidated:
		if e.Outcome == nil {
			return
		}
		attrs = append(attrs, "status", e.Outcome.Label)
		if e.Outcome.Reachable {
			o.logger.Debug("link valid", attrs...)
		} else {
			o.logger.Warn("link broken", attrs...)
		}
	case linkaudit.EventAlternativeFound:
		o.logger.Info("found alternative homepage", attrs...)
	case linkaudit.EventAlternativeMissing:
		o.logger.Warn("no alternative homepage", attrs...)
	case linkaudit.EventContentFetched:
		o.logger.Debug("fetched content", append(attrs, "size", e.Detail)...)
	case linkaudit.EventContentUnavailable:
		o.logger.Debug("content unavailable", append(attrs, "error", e.Err)...)
	case linkaudit.EventLinksExtracted:
		o.logger.Debug("extracted links", append(attrs, "found", e.Detail)...)
	case linkaudit.EventReplacementFound:
		o.logger.Info("found replacement", append(attrs, "score", e.Detail)...)
	case linkaudit.EventReplacementNotFound:
		o.logger.Warn("no replacement", attrs...)
	case linkaudit.EventAnalyzed:
		attrs = append(attrs, "verdict", string(e.Verdict))
		if e.Err != nil {
			attrs = append(attrs, "error", e.Err)
		}
		o.logger.Info("analyzed content", attrs...)
	}
}

// progressObserver keeps a spinner line describing the tool in flight.
// A line counts once even when several passes (check, analyze) run over it.
type progressObserver struct {
	s            *spinner.Spinner
	total        int
	done         int
	lastFinished int
}

func newProgressObserver(w io.Writer, total int) *progressObserver {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	return &progressObserver{s: s, total: total, lastFinished: -1}
}

// position is the 1-indexed count of the tool the event belongs to
func (p *progressObserver) position(line int) int {
	if line == p.lastFinished {
		return p.done
	}
	return p.done + 1
}

func (p *progressObserver) Start() { p.s.Start() }

func (p *progressObserver) Stop() { p.s.Stop() }

func (p *progressObserver) OnEvent(e linkaudit.Event) {
	var suffix string
	switch e.Kind {
	case linkaudit.EventToolStarted:
		suffix = fmt.Sprintf(" [%d/%d] %s: %s", p.position(e.Line), p.total, e.Tool, e.Detail)
	case linkaudit.EventValidated, linkaudit.EventAnalyzed:
		if !e.HasField {
			return
		}
		suffix = fmt.Sprintf(" [%d/%d] %s: %s", p.position(e.Line), p.total, e.Tool, e.Field.Column())
	case linkaudit.EventToolFinished:
		if e.Line != p.lastFinished {
			p.done++
			p.lastFinished = e.Line
		}
		suffix = fmt.Sprintf(" [%d/%d] done", p.done, p.total)
	default:
		return
	}
	p.s.Lock()
	p.s.Suffix = suffix
	p.s.Unlock()
}
