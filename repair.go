package linkaudit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// FieldChange records one substituted link
type FieldChange struct {
	Field Field
	Old   string
	New   string
}

// RepairResult is the outcome of repairing one tool record
type RepairResult struct {
	Record   *ToolRecord
	Original *ToolRecord
	Changed  bool
	Summary  string
	Details  []string
	Changes  []FieldChange
}

// changeNotes renders the change list the way the summary uses it
func (r RepairResult) changeNotes() []string {
	notes := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		notes[i] = fmt.Sprintf("Updated %s to %s", c.Field.Column(), c.New)
	}
	return notes
}

func summarize(r RepairResult, broken int) string {
	if len(r.Changes) > 0 {
		return fmt.Sprintf("Updated %d field(s): %s", len(r.Changes), strings.Join(r.changeNotes(), "; "))
	}
	if broken == 0 {
		return "All links valid, no changes needed."
	}
	return fmt.Sprintf("No changes made, %d broken link(s) without replacement", broken)
}

// Repair validates every link of record and substitutes broken ones with candidates
// found on the homepage. The record passed in is not modified. Every step runs even
// when earlier ones fail.
func (a *Auditor) Repair(ctx context.Context, record *ToolRecord) RepairResult {
	return a.repair(ctx, 0, record)
}

func (a *Auditor) repair(ctx context.Context, line int, record *ToolRecord) RepairResult {
	name := record.Name()
	ctx, span := a.startToolSpan(ctx, "repair", line, name)
	defer span.End()

	start := time.Now()
	a.emit(Event{Kind: EventToolStarted, Line: line, Tool: name, Detail: "repair"})

	res := RepairResult{Record: record.Clone(), Original: record.Clone()}
	rec := res.Record
	broken := 0

	// Homepage first: its content is the candidate pool for every other field.
	homepage := rec.Link(FieldHomepage)
	hp := a.validateField(ctx, line, name, FieldHomepage, homepage)
	if hp.Reachable {
		res.Details = append(res.Details, fmt.Sprintf("Homepage valid: %s", hp.Label))
	} else {
		res.Details = append(res.Details, fmt.Sprintf("Homepage invalid: %s", hp.Label))
		if alt, ok := FindAlternativeHomepage(ctx, pacedValidator{a: a, line: line, tool: name}, name); ok {
			rec.SetLink(FieldHomepage, alt)
			res.Changes = append(res.Changes, FieldChange{Field: FieldHomepage, Old: homepage, New: alt})
			res.Details = append(res.Details, fmt.Sprintf("Homepage replaced: %s -> %s", homepage, alt))
			a.emit(Event{Kind: EventAlternativeFound, Line: line, Tool: name, Field: FieldHomepage, HasField: true, URL: alt})
			homepage = alt
		} else {
			broken++
			res.Details = append(res.Details, "Could not find alternative homepage")
			a.emit(Event{
				Kind: EventAlternativeMissing, Line: line, Tool: name, Field: FieldHomepage, HasField: true,
				URL: homepage, Err: &UnreachableError{URL: homepage, Reason: hp.Label},
			})
		}
	}
	a.pause(ctx)

	var found []string
	if homepage != "" {
		if body, ok := a.fetchContent(ctx, line, name, FieldHomepage, homepage); ok {
			found = ExtractLinks(body, homepage)
			a.emit(Event{
				Kind: EventLinksExtracted, Line: line, Tool: name, URL: homepage,
				Detail: fmt.Sprintf("%d links", len(found)),
			})
		} else {
			res.Details = append(res.Details, "Could not fetch homepage content")
		}
		a.pause(ctx)
	} else {
		res.Details = append(res.Details, "Could not fetch homepage content")
	}
	domain := PreferredDomain(homepage)

	for _, f := range RepairableFields {
		current := rec.Link(f)
		outcome := a.validateField(ctx, line, name, f, current)
		a.pause(ctx)
		if outcome.Reachable {
			res.Details = append(res.Details, fmt.Sprintf("%s valid: %s", f.Column(), outcome.Label))
			continue
		}
		res.Details = append(res.Details, fmt.Sprintf("%s invalid: %s", f.Column(), outcome.Label))

		replacement, ok := a.findReplacement(ctx, line, name, f, current, found, domain)
		if !ok {
			broken++
			res.Details = append(res.Details, fmt.Sprintf("Could not find replacement for %s", f.Column()))
			a.emit(Event{
				Kind: EventReplacementNotFound, Line: line, Tool: name, Field: f, HasField: true, URL: current,
				Err: ErrNoReplacement,
			})
			continue
		}
		rec.SetLink(f, replacement.URL)
		res.Changes = append(res.Changes, FieldChange{Field: f, Old: current, New: replacement.URL})
		res.Details = append(res.Details, fmt.Sprintf("%s replaced: %s -> %s", f.Column(), current, replacement.URL))
		a.emit(Event{
			Kind: EventReplacementFound, Line: line, Tool: name, Field: f, HasField: true, URL: replacement.URL,
			Detail: fmt.Sprintf("score %.2f", replacement.Score),
		})
	}

	res.Changed = len(res.Changes) > 0
	res.Summary = summarize(res, broken)

	span.SetAttributes(
		attribute.Bool("repair.changed", res.Changed),
		attribute.Int("repair.changes", len(res.Changes)),
		attribute.Int("repair.broken", broken),
	)
	a.emit(Event{Kind: EventToolFinished, Line: line, Tool: name, Detail: res.Summary, Duration: time.Since(start)})
	return res
}

// findReplacement tries the eligible candidates best first and returns the first one
// that validates as reachable.
func (a *Auditor) findReplacement(ctx context.Context, line int, tool string, f Field, current string, found []string, domain string) (Candidate, bool) {
	ranked := RankCandidates(found, f.Keywords(), domain, current, a.config.MinRepairScore)
	if !a.config.RequireLiveCandidate {
		if len(ranked) == 0 {
			return Candidate{}, false
		}
		return ranked[0], true
	}

	for i, c := range ranked {
		if i >= a.config.MaxCandidateProbes || ctx.Err() != nil {
			break
		}
		outcome := a.validateField(ctx, line, tool, f, c.URL)
		a.pause(ctx)
		if outcome.Reachable {
			return c, true
		}
	}
	return Candidate{}, false
}
