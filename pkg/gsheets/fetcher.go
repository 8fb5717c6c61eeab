// Package gsheets resolves public Google Sheets URLs to their CSV export and
// fetches them through the resilient request executor. Sheets behind
// corporate proxies are the worst case this package is built for: every
// transport strategy is crossed with two header profiles because some
// intermediaries only let browser-looking traffic through.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/chartpress/pkg/resilient"
	"github.com/hashicorp-forge/chartpress/pkg/tabular"
)

// ErrUnsupportedURL means the source URL is not a Google Sheets URL. It is
// returned before any network activity happens.
var ErrUnsupportedURL = errors.New(
	"unsupported file URL: only Google Sheets URLs are supported")

// sheetIDPattern extracts the sheet reference from a Google Sheets URL. Only
// well-formed identifiers (alphanumeric, hyphen, underscore) are accepted.
var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// headerProfiles are tried per strategy, minimal first. The full browser set
// exists for intermediaries that reject anything not looking like a real
// browser.
var headerProfiles = []map[string]string{
	{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	},
	{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Accept-Encoding":           "gzip, deflate",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	},
}

// IsSupportedURL reports whether the URL belongs to the supported provider:
// a docs.google.com host with a /spreadsheets/ path segment.
func IsSupportedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, "docs.google.com") &&
		strings.Contains(u.Path, "/spreadsheets/")
}

// SheetID extracts the sheet reference from a Google Sheets URL.
func SheetID(raw string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("could not extract sheet ID from Google Sheets URL")
	}
	return m[1], nil
}

// DefaultBaseURL is the Google Docs host serving sheet exports.
const DefaultBaseURL = "https://docs.google.com"

// ExportURL builds the canonical CSV export URL for a sheet reference. The
// first worksheet (gid=0) is always used.
func ExportURL(sheetID string) string {
	return exportURL(DefaultBaseURL, sheetID)
}

func exportURL(baseURL, sheetID string) string {
	return fmt.Sprintf(
		"%s/spreadsheets/d/%s/export?format=csv&gid=0",
		baseURL, sheetID)
}

// Config holds configuration for a Fetcher.
type Config struct {
	// Executor runs the outbound requests (required).
	Executor *resilient.Executor

	// Logger (optional).
	Logger hclog.Logger

	// BaseURL overrides the export host, for tests.
	BaseURL string
}

// Fetcher downloads and parses public Google Sheets.
type Fetcher struct {
	exec    *resilient.Executor
	logger  hclog.Logger
	baseURL string
}

// New creates a Fetcher on top of the given executor.
func New(cfg Config) *Fetcher {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Fetcher{
		exec:    cfg.Executor,
		logger:  cfg.Logger.Named("gsheets"),
		baseURL: cfg.BaseURL,
	}
}

// Fetch validates the source URL, resolves it to the CSV export endpoint and
// drives the strategy-by-header-profile retry search until a usable payload
// arrives, which it parses into a table. Unsupported URLs fail fast with
// ErrUnsupportedURL before any network call.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*tabular.Table, error) {
	if !IsSupportedURL(sourceURL) {
		return nil, ErrUnsupportedURL
	}

	sheetID, err := SheetID(sourceURL)
	if err != nil {
		return nil, err
	}
	target := exportURL(f.baseURL, sheetID)

	f.logger.Info("downloading sheet", "sheet_id", sheetID, "url", target)

	res, err := f.exec.DoWithOptions(ctx,
		resilient.Request{
			Method: "GET",
			URL:    target,
		},
		resilient.Options{
			HeaderProfiles: headerProfiles,
			Accept:         acceptTabularPayload,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to download Google Sheet: %w", err)
	}

	table, err := tabular.Parse(strings.NewReader(string(res.Body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet data: %w", err)
	}

	f.logger.Info("downloaded sheet",
		"sheet_id", sheetID,
		"strategy", res.Strategy,
		"columns", len(table.Columns),
		"rows", len(table.Rows),
	)
	return table, nil
}

// acceptTabularPayload guards against HTML error or login pages masquerading
// as a 200 response: the payload must be non-empty and must not begin with
// markup.
func acceptTabularPayload(res *resilient.Result) error {
	content := strings.TrimSpace(string(res.Body))
	if content == "" {
		return fmt.Errorf("received empty response instead of CSV data")
	}
	lower := strings.ToLower(content)
	if strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<!doctype") {
		return fmt.Errorf("received HTML response instead of CSV data")
	}
	return nil
}
