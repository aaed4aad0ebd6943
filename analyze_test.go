package linkaudit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter answers from a list in order and records every prompt
type scriptedCompleter struct {
	answers []string
	errs    []error
	prompts []string
}

func (c *scriptedCompleter) Generate(ctx context.Context, prompt string) (string, error) {
	i := len(c.prompts)
	c.prompts = append(c.prompts, prompt)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("completion called without a deadline")
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.answers) {
		return c.answers[i], nil
	}
	return "NO", nil
}

func TestAnalyzeContentEmptySkipsCompletion(t *testing.T) {
	c := &scriptedCompleter{}
	a := New(testConfig(), WithCompleter(c))

	assert.Equal(t, VerdictNoContent, a.AnalyzeContent(context.Background(), FieldPrivacy, ""))
	assert.Equal(t, VerdictNoContent, a.AnalyzeContent(context.Background(), FieldPrivacy, "  \n\t "))
	assert.Empty(t, c.prompts)
}

func TestAnalyzeContentPrompt(t *testing.T) {
	c := &scriptedCompleter{answers: []string{"YES"}}
	a := New(testConfig(), WithCompleter(c))

	v := a.AnalyzeContent(context.Background(), FieldDPA, "We offer a data processing agreement.")
	assert.Equal(t, VerdictYes, v)
	require.Len(t, c.prompts, 1)
	assert.True(t, strings.HasPrefix(c.prompts[0], FieldDPA.Question()))
	assert.Contains(t, c.prompts[0], "Answer with only YES or NO.")
	assert.True(t, strings.HasSuffix(c.prompts[0], "Content:\nWe offer a data processing agreement."))
}

func TestAnalyzeContentChunks(t *testing.T) {
	cfg := testConfig()
	cfg.AnalysisChunkSize = 10
	cfg.AnalysisMaxChars = 25
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 10)

	t.Run("stops at the first yes", func(t *testing.T) {
		c := &scriptedCompleter{answers: []string{"No.", "Yes, it does."}}
		v := New(cfg, WithCompleter(c)).AnalyzeContent(context.Background(), FieldGDPR, text)
		assert.Equal(t, VerdictYes, v)
		assert.Len(t, c.prompts, 2)
	})

	t.Run("text beyond the cap is ignored", func(t *testing.T) {
		c := &scriptedCompleter{}
		v := New(cfg, WithCompleter(c)).AnalyzeContent(context.Background(), FieldGDPR, text)
		assert.Equal(t, VerdictNo, v)
		require.Len(t, c.prompts, 3)
		assert.True(t, strings.HasSuffix(c.prompts[2], "ccccc"))
		assert.False(t, strings.HasSuffix(c.prompts[2], "cccccc"))
	})

	t.Run("one failing chunk is skipped", func(t *testing.T) {
		c := &scriptedCompleter{errs: []error{errors.New("timeout")}, answers: []string{"", "no"}}
		v := New(cfg, WithCompleter(c)).AnalyzeContent(context.Background(), FieldGDPR, text)
		assert.Equal(t, VerdictNo, v)
	})

	t.Run("every chunk failing is unclear", func(t *testing.T) {
		boom := errors.New("service unavailable")
		c := &scriptedCompleter{errs: []error{boom, boom, boom}}
		v, err := New(cfg, WithCompleter(c)).analyzeContent(context.Background(), FieldGDPR, text)
		assert.Equal(t, VerdictUnclear, v)
		assert.ErrorIs(t, err, ErrAnalysisInconclusive)
		assert.ErrorContains(t, err, "service unavailable")
	})
}

func TestAnalyzeContentWithoutCompleter(t *testing.T) {
	v, err := New(testConfig()).analyzeContent(context.Background(), FieldPrivacy, "some text")
	assert.Equal(t, VerdictUnclear, v)
	assert.ErrorIs(t, err, ErrAnalysisInconclusive)
}

func TestParseVerdict(t *testing.T) {
	tests := map[string]Verdict{
		"YES":                   VerdictYes,
		"yes":                   VerdictYes,
		"  Yes.\n":              VerdictYes,
		"NO":                    VerdictNo,
		"No, but YES elsewhere": VerdictYes,
		"":                      VerdictNo,
		"I cannot tell":         VerdictNo,
	}
	for answer, want := range tests {
		assert.Equal(t, want, parseVerdict(answer), "answer %q", answer)
	}
}

func TestChunkText(t *testing.T) {
	assert.Nil(t, chunkText("", 100, 10))
	assert.Equal(t, []string{"abc", "de"}, chunkText("abcde", 100, 3))
	assert.Equal(t, []string{"ab", "c"}, chunkText("abcdef", 3, 2))
	// Runes, not bytes
	assert.Equal(t, []string{"äö", "ü"}, chunkText("äöü", 10, 2))
}

func TestAnalyzeRecord(t *testing.T) {
	policy := "<html><body><h1>Privacy Policy</h1><p>" + strings.Repeat("We protect your personal data. ", 5) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/privacy":
			io.WriteString(w, policy)
		case "/empty":
			io.WriteString(w, "<html><body><script>var x = 1;</script></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &scriptedCompleter{answers: []string{"NO", "YES"}}
	events := &eventLog{}
	a := New(testConfig(), WithCompleter(c), WithObserver(events))

	record := toolRecord(map[string]string{
		"App name":             "Acme",
		"Homepage":             srv.URL + "/",
		"Privacy/Legal Link":   srv.URL + "/privacy",
		"Storage/Hosting Link": srv.URL + "/empty",
		"DPA/AVV Link":         srv.URL + "/missing",
	})
	res := a.Analyze(context.Background(), record)

	assert.Equal(t, VerdictNo, res.Verdict(FieldHomepage))
	assert.Equal(t, VerdictYes, res.Verdict(FieldPrivacy))
	assert.Equal(t, VerdictNoURL, res.Verdict(FieldGDPR))
	assert.Equal(t, VerdictNoContent, res.Verdict(FieldStorage))
	assert.Equal(t, VerdictNoContent, res.Verdict(FieldDPA))
	assert.Len(t, c.prompts, 2, "pages without content never reach the completer")

	assert.Len(t, events.find(EventAnalyzed), len(Fields))
	assert.Equal(t, EventToolStarted, events.kinds()[0])
	assert.Equal(t, "analyze", events.events[0].Detail)
	assert.Equal(t, EventToolFinished, events.kinds()[len(events.events)-1])
}

func TestAnalysisResultVerdictDefault(t *testing.T) {
	var r AnalysisResult
	assert.Equal(t, VerdictNoURL, r.Verdict(FieldDPA))
}
