package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docutag/linkaudit"
	"github.com/docutag/linkaudit/models"
	"github.com/docutag/linkaudit/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vendorSite serves a homepage linking to a live privacy page and nothing else
func vendorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><body><h1>Acme</h1>
			<a href="/privacy-policy">Privacy</a>
			<a href="/about">About</a>
			<a href="/logo.png">Logo</a>
		</body></html>`)
	})
	mux.HandleFunc("/privacy-policy", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>This privacy policy describes how Acme processes personal data under the GDPR.</p></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "about")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stubCompleter struct{ answer string }

func (c stubCompleter) Generate(ctx context.Context, prompt string) (string, error) {
	return c.answer, nil
}

func testAuditor(opts ...linkaudit.Option) *linkaudit.Auditor {
	cfg := linkaudit.DefaultConfig()
	cfg.RequestDelay = 0
	return linkaudit.New(cfg, opts...)
}

func setupTestServer(t *testing.T, opts ...linkaudit.Option) (*Server, *prometheus.Registry) {
	t.Helper()

	sink, err := storage.New(storage.Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	server, err := NewServer(Config{Addr: ":0", CORSEnabled: false}, Deps{
		Auditor:  testAuditor(opts...),
		Sink:     sink,
		Registry: reg,
	})
	require.NoError(t, err)
	return server, reg
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServerRequiresAuditor(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.Completer)

	w = doJSON(t, server, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleValidate(t *testing.T) {
	site := vendorSite(t)
	server, _ := setupTestServer(t)

	tests := []struct {
		name           string
		method         string
		body           interface{}
		wantStatusCode int
		wantErrMsg     string
		checkResponse  func(t *testing.T, resp *models.ValidateResponse)
	}{
		{
			name:           "reachable page",
			method:         http.MethodPost,
			body:           models.ValidateRequest{URL: site.URL + "/privacy-policy"},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.ValidateResponse) {
				assert.True(t, resp.Reachable)
				assert.Equal(t, "Valid (HTTP 200)", resp.Label)
				assert.Equal(t, 200, resp.StatusCode)
				assert.NotEmpty(t, resp.ID)
			},
		},
		{
			name:           "missing page",
			method:         http.MethodPost,
			body:           models.ValidateRequest{URL: site.URL + "/gone"},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.ValidateResponse) {
				assert.False(t, resp.Reachable)
				assert.Equal(t, "Not found (HTTP 404)", resp.Label)
				assert.Equal(t, "not_found", resp.Class)
			},
		},
		{
			name:           "missing URL",
			method:         http.MethodPost,
			body:           models.ValidateRequest{},
			wantStatusCode: http.StatusBadRequest,
			wantErrMsg:     "url is required",
		},
		{
			name:           "invalid JSON",
			method:         http.MethodPost,
			body:           "{not json",
			wantStatusCode: http.StatusBadRequest,
			wantErrMsg:     "invalid request body",
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			wantStatusCode: http.StatusMethodNotAllowed,
			wantErrMsg:     "method not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, server, tt.method, "/api/validate", tt.body)
			require.Equal(t, tt.wantStatusCode, w.Code, w.Body.String())

			if tt.wantErrMsg != "" {
				var errResp models.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
				assert.Equal(t, tt.wantErrMsg, errResp.Error)
				return
			}

			var resp models.ValidateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tt.checkResponse(t, &resp)
		})
	}
}

func TestHandleExtractLinks(t *testing.T) {
	site := vendorSite(t)
	server, _ := setupTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/extract-links", models.ExtractLinksRequest{URL: site.URL + "/"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ExtractLinksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{site.URL + "/privacy-policy", site.URL + "/about", site.URL + "/logo.png"}, resp.Links)
	assert.Equal(t, 3, resp.Count)

	w = doJSON(t, server, http.MethodPost, "/api/extract-links", models.ExtractLinksRequest{URL: site.URL + "/missing"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleCheck(t *testing.T) {
	site := vendorSite(t)
	server, _ := setupTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/check", models.RecordRequest{
		Values: map[string]string{
			"App name":           "Acme",
			"Homepage":           site.URL + "/",
			"Privacy/Legal Link": site.URL + "/old-privacy",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Tool)
	require.Len(t, resp.Outcomes, 2, "empty links are not validated")
	assert.Equal(t, "Homepage", resp.Outcomes[0].Field)
	assert.True(t, resp.Outcomes[0].Reachable)
	assert.Equal(t, "Privacy/Legal Link", resp.Outcomes[1].Field)
	assert.False(t, resp.Outcomes[1].Reachable)
	assert.Equal(t, 1, resp.Broken)

	w = doJSON(t, server, http.MethodPost, "/api/check", models.RecordRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRepair(t *testing.T) {
	site := vendorSite(t)
	server, _ := setupTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/api/repair", models.RepairRequest{
		RecordRequest: models.RecordRequest{
			Values: map[string]string{
				"App name":           "Acme",
				"Homepage":           site.URL + "/",
				"Privacy/Legal Link": site.URL + "/old-privacy",
				"DSGVO/GDPR Link":    site.URL + "/privacy-policy",
			},
		},
		SaveReport: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RepairResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, "Updated 1 field(s): Updated Privacy/Legal Link to "+site.URL+"/privacy-policy", resp.Summary)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, site.URL+"/old-privacy", resp.Changes[0].OldValue)
	assert.Equal(t, site.URL+"/privacy-policy", resp.Record["Privacy/Legal Link"])
	require.NotEmpty(t, resp.Report)
	assert.True(t, strings.HasPrefix(resp.Report, "acme-validation-log-"), resp.Report)

	// The stored results log is served back
	w = doJSON(t, server, http.MethodGet, "/api/reports/"+resp.Report, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"tool_name": "Acme"`)

	w = doJSON(t, server, http.MethodGet, "/api/reports/nothing-here.json", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, server, http.MethodDelete, "/api/reports/"+resp.Report, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, server, http.MethodGet, "/api/reports/"+resp.Report, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRepairWithoutStorage(t *testing.T) {
	server, err := NewServer(Config{}, Deps{Auditor: testAuditor()})
	require.NoError(t, err)

	w := doJSON(t, server, http.MethodPost, "/api/repair", models.RepairRequest{
		RecordRequest: models.RecordRequest{Values: map[string]string{"App name": "Acme"}},
		SaveReport:    true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleAnalyze(t *testing.T) {
	site := vendorSite(t)

	server, _ := setupTestServer(t)
	w := doJSON(t, server, http.MethodPost, "/api/analyze", models.RecordRequest{Values: map[string]string{"App name": "Acme"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no completer configured")

	server, _ = setupTestServer(t, linkaudit.WithCompleter(stubCompleter{answer: "YES"}))
	w = doJSON(t, server, http.MethodPost, "/api/analyze", models.RecordRequest{
		Values: map[string]string{
			"App name":           "Acme",
			"Privacy/Legal Link": site.URL + "/privacy-policy",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Verdicts, 5)
	verdicts := map[string]string{}
	for _, v := range resp.Verdicts {
		verdicts[v.Field] = v.Verdict
	}
	assert.Equal(t, "No URL", verdicts["Homepage"])
	assert.Equal(t, "Yes", verdicts["Privacy/Legal Link"])
}

func TestMetricsEndpoint(t *testing.T) {
	site := vendorSite(t)
	server, _ := setupTestServer(t)

	doJSON(t, server, http.MethodPost, "/api/check", models.RecordRequest{
		Values: map[string]string{"App name": "Acme", "Homepage": site.URL + "/"},
	})

	w := doJSON(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `linkaudit_tools_processed_total{operation="check"} 1`)
	assert.Contains(t, body, `linkaudit_http_requests_total{method="POST",path="/api/check",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	server, err := NewServer(Config{CORSEnabled: true}, Deps{Auditor: testAuditor()})
	require.NoError(t, err)

	w := doJSON(t, server, http.MethodOptions, "/api/check", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestToRecordColumnOrder(t *testing.T) {
	record, err := toRecord(models.RecordRequest{Values: map[string]string{
		"Notes":    "n",
		"Homepage": "https://acme.com",
		"Category": "c",
		"App name": "Acme",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"App name", "Homepage", "Privacy/Legal Link", "DSGVO/GDPR Link", "Storage/Hosting Link", "DPA/AVV Link",
		"Category", "Notes",
	}, record.Columns())

	record, err = toRecord(models.RecordRequest{
		Columns: []string{"Tool Name", "Homepage"},
		Values:  map[string]string{"Tool Name": "Acme", "Homepage": "https://acme.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tool Name", "Homepage"}, record.Columns())
	assert.Equal(t, "Acme", record.Name())
}

func TestHandleReportRejectsKeysOutsideStorage(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("do not serve"), 0o644))

	sink, err := storage.New(storage.Config{BasePath: filepath.Join(root, "reports")})
	require.NoError(t, err)
	server, err := NewServer(Config{Addr: ":0"}, Deps{Auditor: testAuditor(), Sink: sink})
	require.NoError(t, err)

	for _, path := range []string{
		"/api/reports/..%2fsecret.txt",
		"/api/reports/logs%2f..%2f..%2fsecret.txt",
		"/api/reports/..%5csecret.txt",
	} {
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			w := doJSON(t, server, method, path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", method, path)
			assert.NotContains(t, w.Body.String(), "do not serve")
		}
	}

	data, err := os.ReadFile(outside)
	require.NoError(t, err, "file outside the report storage must survive")
	assert.Equal(t, "do not serve", string(data))
}

func TestEscapesBase(t *testing.T) {
	assert.True(t, escapesBase("../secret.txt"))
	assert.True(t, escapesBase("logs/../../secret.txt"))
	assert.True(t, escapesBase(`..\secret.txt`))
	assert.False(t, escapesBase("acme-validation-log-20240101-120000.json"))
	assert.False(t, escapesBase("logs/run..v2.json"))
}
