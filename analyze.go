package linkaudit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Verdict is the language model's judgment of whether content matches a link's purpose
type Verdict string

const (
	VerdictYes       Verdict = "Yes"
	VerdictNo        Verdict = "No"
	VerdictUnclear   Verdict = "Unclear"
	VerdictNoContent Verdict = "No content"
	VerdictNoURL     Verdict = "No URL"
)

// Completer is a text-completion service
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnalysisResult holds the verdict per link field of one tool
type AnalysisResult struct {
	Verdicts map[Field]Verdict `json:"verdicts"`
}

// Verdict returns the verdict for a field, VerdictNoURL when the field was never analyzed
func (r AnalysisResult) Verdict(f Field) Verdict {
	if v, ok := r.Verdicts[f]; ok {
		return v
	}
	return VerdictNoURL
}

// buildPrompt asks the field's question about one chunk of page text
func buildPrompt(question, chunk string) string {
	return fmt.Sprintf(`%s

Answer with only YES or NO.

Content:
%s`, question, chunk)
}

// parseVerdict extracts the answer from free text. YES wins over NO, anything else is No.
func parseVerdict(answer string) Verdict {
	upper := strings.ToUpper(answer)
	if strings.Contains(upper, "YES") {
		return VerdictYes
	}
	return VerdictNo
}

// chunkText caps text at maxChars runes and splits it into chunks of size runes
func chunkText(text string, maxChars, size int) []string {
	runes := []rune(text)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// AnalyzeContent asks whether content matches the field's purpose. Empty content is
// "No content" without a completion call; every chunk failing yields Unclear.
func (a *Auditor) AnalyzeContent(ctx context.Context, field Field, content string) Verdict {
	verdict, _ := a.analyzeContent(ctx, field, content)
	return verdict
}

func (a *Auditor) analyzeContent(ctx context.Context, field Field, content string) (Verdict, error) {
	if strings.TrimSpace(content) == "" {
		return VerdictNoContent, nil
	}
	if a.completer == nil {
		return VerdictUnclear, fmt.Errorf("%w: no completer configured", ErrAnalysisInconclusive)
	}

	var lastErr error
	answered := false
	for _, chunk := range chunkText(content, a.config.AnalysisMaxChars, a.config.AnalysisChunkSize) {
		callCtx, cancel := context.WithTimeout(ctx, a.config.AnalysisTimeout)
		answer, err := a.completer.Generate(callCtx, buildPrompt(field.Question(), chunk))
		cancel()
		if err != nil {
			lastErr = err
			a.logger.Debug("completion failed", "field", field.Column(), "error", err)
			continue
		}
		answered = true
		if parseVerdict(answer) == VerdictYes {
			return VerdictYes, nil
		}
	}
	if !answered {
		return VerdictUnclear, fmt.Errorf("%w: %v", ErrAnalysisInconclusive, lastErr)
	}
	return VerdictNo, nil
}

// Analyze fetches every link of the record and asks the completer whether the page
// matches the field's purpose.
func (a *Auditor) Analyze(ctx context.Context, record *ToolRecord) AnalysisResult {
	return a.analyze(ctx, 0, record)
}

func (a *Auditor) analyze(ctx context.Context, line int, record *ToolRecord) AnalysisResult {
	result := AnalysisResult{Verdicts: make(map[Field]Verdict, len(Fields))}
	name := record.Name()
	ctx, span := a.startToolSpan(ctx, "analyze", line, name)
	defer span.End()

	started := time.Now()
	a.emit(Event{Kind: EventToolStarted, Line: line, Tool: name, Detail: "analyze"})
	defer func() {
		a.emit(Event{Kind: EventToolFinished, Line: line, Tool: name, Duration: time.Since(started)})
	}()

	for _, f := range Fields {
		link := record.Link(f)
		start := time.Now()

		var verdict Verdict
		var err error
		switch {
		case link == "":
			verdict = VerdictNoURL
		default:
			html, ok := a.fetchContent(ctx, line, name, f, link)
			a.pause(ctx)
			text := ""
			if ok {
				text = ExtractText(html)
			}
			if len([]rune(text)) < a.config.MinContentChars {
				verdict = VerdictNoContent
			} else {
				verdict, err = a.analyzeContent(ctx, f, text)
			}
		}

		result.Verdicts[f] = verdict
		a.emit(Event{
			Kind: EventAnalyzed, Line: line, Tool: name, Field: f, HasField: true, URL: link,
			Verdict: verdict, Err: err, Duration: time.Since(start),
		})
	}
	return result
}
