package linkaudit

import (
	"context"
	"fmt"
	"time"
)

// Mode selects what RunBatch does with every tool
type Mode string

const (
	ModeCheck   Mode = "check"
	ModeAnalyze Mode = "analyze"
	ModeRepair  Mode = "repair"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCheck, ModeAnalyze, ModeRepair:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want check, analyze or repair)", s)
}

// Marker row names written into the name column
const (
	CheckMarker    = "[LINK CHECK RESULTS]"
	LinkMarker     = "[LINK CHECK]"
	AnalysisMarker = "[CONTENT ANALYSIS]"
)

// BatchOptions controls a batch run
type BatchOptions struct {
	Mode  Mode
	Start int // first line to process, 1-indexed (0 means 1)
	End   int // last line to process, inclusive (0 means the last record)

	// Checkpoint is called after every tool with the complete output so far
	// (processed rows plus the untouched rest). An error stops the batch.
	Checkpoint func(rows []*ToolRecord) error
}

// LineResult is the repair outcome for one batch line
type LineResult struct {
	Line   int
	Tool   string
	Result RepairResult
}

// BatchResult is the output of a batch run
type BatchResult struct {
	Rows      []*ToolRecord
	Repairs   []LineResult
	Processed int
	Changed   int
	Duration  time.Duration
}

// lineRange resolves the 1-indexed inclusive range to slice bounds
func lineRange(start, end, total int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end+1 {
		start = end + 1
	}
	return start - 1, end
}

// RunBatch processes the records in the configured line range, sequentially.
// Rows outside the range pass through unchanged. Only a checkpoint failure or
// cancellation ends the run early; the partial result is returned with the error.
func (a *Auditor) RunBatch(ctx context.Context, records []*ToolRecord, opts BatchOptions) (BatchResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCheck
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return BatchResult{}, err
	}

	started := time.Now()
	from, to := lineRange(opts.Start, opts.End, len(records))
	res := BatchResult{Rows: make([]*ToolRecord, 0, len(records)+2*(to-from))}
	res.Rows = append(res.Rows, records[:from]...)

	for idx := from; idx < to; idx++ {
		if err := ctx.Err(); err != nil {
			res.Rows = append(res.Rows, records[idx:]...)
			res.Duration = time.Since(started)
			return res, err
		}

		line := idx + 1
		record := records[idx]
		switch opts.Mode {
		case ModeCheck:
			check := a.check(ctx, line, record)
			res.Rows = append(res.Rows, record, checkRow(record, CheckMarker, check))
		case ModeAnalyze:
			check := a.check(ctx, line, record)
			res.Rows = append(res.Rows, record, checkRow(record, LinkMarker, check))
			if a.completer != nil {
				res.Rows = append(res.Rows, analysisRow(record, a.analyze(ctx, line, record)))
			}
		case ModeRepair:
			r := a.repair(ctx, line, record)
			res.Rows = append(res.Rows, r.Record)
			res.Repairs = append(res.Repairs, LineResult{Line: line, Tool: record.Name(), Result: r})
			if r.Changed {
				res.Changed++
			}
		}
		res.Processed++

		if opts.Checkpoint != nil {
			snapshot := append(append([]*ToolRecord(nil), res.Rows...), records[idx+1:]...)
			if err := opts.Checkpoint(snapshot); err != nil {
				res.Rows = append(res.Rows, records[idx+1:]...)
				res.Duration = time.Since(started)
				return res, fmt.Errorf("checkpoint after line %d: %w", line, err)
			}
		}
	}

	res.Rows = append(res.Rows, records[to:]...)
	res.Duration = time.Since(started)
	return res, nil
}

// OutcomeIcon prefixes labels in marker rows
func OutcomeIcon(o ValidationOutcome) string {
	switch {
	case o.Warning():
		return "⚠️"
	case o.Reachable:
		return "✅"
	default:
		return "❌"
	}
}

// VerdictIcon prefixes verdicts in marker rows
func VerdictIcon(v Verdict) string {
	switch v {
	case VerdictYes:
		return "✅"
	case VerdictNoURL:
		return "⚠️"
	case VerdictUnclear:
		return "❓"
	default:
		return "❌"
	}
}

func markerRow(record *ToolRecord, marker string) *ToolRecord {
	row := record.Blank()
	row.Set(record.NameColumn(), marker)
	return row
}

func checkRow(record *ToolRecord, marker string, check CheckResult) *ToolRecord {
	row := markerRow(record, marker)
	for _, f := range Fields {
		if !record.Has(f.Column()) {
			continue
		}
		o, ok := check.Outcome(f)
		if !ok {
			row.SetLink(f, "⚠️ No URL")
			continue
		}
		row.SetLink(f, OutcomeIcon(o)+" "+o.Label)
	}
	return row
}

func analysisRow(record *ToolRecord, analysis AnalysisResult) *ToolRecord {
	row := markerRow(record, AnalysisMarker)
	for _, f := range Fields {
		if !record.Has(f.Column()) {
			continue
		}
		v := analysis.Verdict(f)
		row.SetLink(f, VerdictIcon(v)+" "+string(v))
	}
	return row
}
