package linkaudit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// CheckResult holds the validation outcome of every link field of one tool
type CheckResult struct {
	Outcomes map[Field]ValidationOutcome
}

// Outcome returns the outcome for a field and whether the field had a URL
func (r CheckResult) Outcome(f Field) (ValidationOutcome, bool) {
	o, ok := r.Outcomes[f]
	return o, ok
}

// Broken counts links that were present but unreachable
func (r CheckResult) Broken() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Reachable {
			n++
		}
	}
	return n
}

// Check validates every non-empty link of the record without changing it
func (a *Auditor) Check(ctx context.Context, record *ToolRecord) CheckResult {
	return a.check(ctx, 0, record)
}

func (a *Auditor) check(ctx context.Context, line int, record *ToolRecord) CheckResult {
	name := record.Name()
	ctx, span := a.startToolSpan(ctx, "check", line, name)
	defer span.End()

	start := time.Now()
	a.emit(Event{Kind: EventToolStarted, Line: line, Tool: name, Detail: "check"})

	result := CheckResult{Outcomes: make(map[Field]ValidationOutcome, len(Fields))}
	for _, f := range Fields {
		link := record.Link(f)
		if link == "" {
			continue
		}
		result.Outcomes[f] = a.validateField(ctx, line, name, f, link)
		a.pause(ctx)
	}

	span.SetAttributes(attribute.Int("check.broken", result.Broken()))
	a.emit(Event{Kind: EventToolFinished, Line: line, Tool: name, Duration: time.Since(start)})
	return result
}
