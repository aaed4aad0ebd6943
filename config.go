package linkaudit

import "time"

// DefaultUserAgent is sent with every request; plain library agents get blocked by a lot of vendor sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config contains auditor configuration
type Config struct {
	HTTPTimeout  time.Duration // Per-request timeout for probes and fetches
	UserAgent    string
	RequestDelay time.Duration // Courtesy pause after every network call (0 disables)
	MaxRedirects int
	MaxBodyBytes int64 // Maximum body size read by the content fetcher

	MinRepairScore       float64 // Minimum candidate score for a field replacement
	MaxCandidateProbes   int     // Maximum candidates validated per broken field
	RequireLiveCandidate bool    // Replacement candidates must validate as reachable

	AnalysisChunkSize int           // Characters per completion prompt
	AnalysisMaxChars  int           // Characters of page text considered at all
	MinContentChars   int           // Pages with less text are reported as "No content"
	AnalysisTimeout   time.Duration // Timeout per completion call
}

// DefaultConfig returns default auditor configuration
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:          10 * time.Second,
		UserAgent:            DefaultUserAgent,
		RequestDelay:         500 * time.Millisecond,
		MaxRedirects:         30,
		MaxBodyBytes:         5 * 1024 * 1024, // 5MB
		MinRepairScore:       20,
		MaxCandidateProbes:   5,
		RequireLiveCandidate: true,
		AnalysisChunkSize:    4000,
		AnalysisMaxChars:     5000,
		MinContentChars:      50,
		AnalysisTimeout:      60 * time.Second,
	}
}

// withDefaults fills zero values so a partially populated Config is usable
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.MaxCandidateProbes <= 0 {
		c.MaxCandidateProbes = d.MaxCandidateProbes
	}
	if c.AnalysisChunkSize <= 0 {
		c.AnalysisChunkSize = d.AnalysisChunkSize
	}
	if c.AnalysisMaxChars <= 0 {
		c.AnalysisMaxChars = d.AnalysisMaxChars
	}
	if c.MinContentChars < 0 {
		c.MinContentChars = 0
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = d.AnalysisTimeout
	}
	return c
}
