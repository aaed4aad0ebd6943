package models

import "time"

// ValidateRequest represents a request to validate a single URL
type ValidateRequest struct {
	URL string `json:"url"`
}

// ValidateResponse represents the classified reachability of a URL
type ValidateResponse struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	Reachable  bool    `json:"reachable"`
	Label      string  `json:"label"`
	Class      string  `json:"class"`
	StatusCode int     `json:"status_code,omitempty"`
	Duration   float64 `json:"duration_seconds"`
}

// ExtractLinksRequest represents a request to extract links from a page
type ExtractLinksRequest struct {
	URL string `json:"url"`
}

// ExtractLinksResponse lists the absolute links found on a page
type ExtractLinksResponse struct {
	URL   string   `json:"url"`
	Links []string `json:"links"`
	Count int      `json:"count"`
}

// RecordRequest carries one tool row. Columns fixes the output order; when empty
// the five link columns follow the name columns present in Values.
type RecordRequest struct {
	Columns []string          `json:"columns,omitempty"`
	Values  map[string]string `json:"values"`
}

// RepairRequest carries a tool row and whether to store a results log for it
type RepairRequest struct {
	RecordRequest
	SaveReport bool `json:"save_report,omitempty"`
}

// FieldOutcome is the validation outcome of one link column
type FieldOutcome struct {
	Field      string `json:"field"`
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	Label      string `json:"label"`
	StatusCode int    `json:"status_code,omitempty"`
}

// CheckResponse represents the link check of one tool
type CheckResponse struct {
	ID       string         `json:"id"`
	Tool     string         `json:"tool"`
	Outcomes []FieldOutcome `json:"outcomes"`
	Broken   int            `json:"broken"`
}

// FieldChange represents one substituted link
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// RepairResponse represents the repair of one tool
type RepairResponse struct {
	ID      string            `json:"id"`
	Tool    string            `json:"tool"`
	Changed bool              `json:"changed"`
	Summary string            `json:"summary"`
	Details []string          `json:"details"`
	Changes []FieldChange     `json:"changes,omitempty"`
	Record  map[string]string `json:"record"`
	Report  string            `json:"report,omitempty"` // Storage key of the results log, when saved
}

// FieldVerdict is the content analysis verdict for one link column
type FieldVerdict struct {
	Field   string `json:"field"`
	URL     string `json:"url"`
	Verdict string `json:"verdict"`
}

// AnalyzeResponse represents the content analysis of one tool
type AnalyzeResponse struct {
	ID       string         `json:"id"`
	Tool     string         `json:"tool"`
	Verdicts []FieldVerdict `json:"verdicts"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
	Completer bool      `json:"completer"`
}

// OllamaRequest represents a request to the Ollama API
type OllamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// OllamaResponse represents a response from the Ollama API
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// OllamaTagsResponse lists the models installed on an Ollama server
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel is one installed model
type OllamaModel struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}
