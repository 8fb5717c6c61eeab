// Package datawrapper is a minimal client for the Datawrapper chart API,
// covering the four operations the publishing workflow needs: create a chart,
// upload its data, merge metadata, publish. Every call goes through the
// resilient request executor so a hostile network path never surfaces as a
// hard failure until the whole strategy matrix is exhausted.
package datawrapper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/chartpress/pkg/resilient"
)

const (
	// DefaultBaseURL is the production Datawrapper API.
	DefaultBaseURL = "https://api.datawrapper.de"

	// publicURLFormat is how a published chart's viewing URL derives from
	// its id.
	publicURLFormat = "https://www.datawrapper.de/_/%s/"
)

// Config holds configuration for the Datawrapper client.
type Config struct {
	// BaseURL of the Datawrapper API. Default: DefaultBaseURL.
	BaseURL string

	// Token is the API token used as a Bearer credential.
	Token string

	// Executor runs the outbound requests (required).
	Executor *resilient.Executor

	// Logger (optional).
	Logger hclog.Logger

	// PublicURLBase overrides the public chart URL prefix, for tests.
	PublicURLBase string
}

// Client calls the Datawrapper API.
type Client struct {
	baseURL       string
	token         string
	exec          *resilient.Executor
	logger        hclog.Logger
	publicURLBase string
}

// New creates a Datawrapper client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		exec:          cfg.Executor,
		logger:        cfg.Logger.Named("datawrapper"),
		publicURLBase: cfg.PublicURLBase,
	}
}

// Metadata is the descriptive block merged into a chart before publishing.
type Metadata struct {
	Intro      string
	Byline     string
	SourceName string
	SourceURL  string

	// CustomColors maps data categories to color codes. Empty means no
	// color overrides.
	CustomColors map[string]string
}

// createChartResponse is the subset of the create response we consume.
type createChartResponse struct {
	ID string `json:"id"`
}

// CreateChart creates a chart of the given type and title and returns the
// provider-generated chart id.
func (c *Client) CreateChart(ctx context.Context, chartType, title string) (string, error) {
	req, err := resilient.NewJSONRequest(
		http.MethodPost,
		c.baseURL+"/v3/charts",
		c.authHeaders(),
		map[string]string{
			"type":  chartType,
			"title": title,
		},
	)
	if err != nil {
		return "", err
	}

	res, err := c.exec.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chart: %w", err)
	}

	var created createChartResponse
	if err := res.JSON(&created); err != nil {
		return "", fmt.Errorf("failed to decode create chart response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create chart response contained no chart id")
	}

	c.logger.Info("created chart", "chart_id", created.ID, "type", chartType)
	return created.ID, nil
}

// UploadData uploads serialized delimited text as the chart's data.
func (c *Client) UploadData(ctx context.Context, chartID string, csvData []byte) error {
	headers := c.authHeaders()
	headers["Content-Type"] = "text/csv"

	_, err := c.exec.Do(ctx, resilient.Request{
		Method:  http.MethodPut,
		URL:     fmt.Sprintf("%s/v3/charts/%s/data", c.baseURL, chartID),
		Headers: headers,
		Body:    csvData,
	})
	if err != nil {
		return fmt.Errorf("failed to upload chart data: %w", err)
	}

	c.logger.Info("uploaded chart data", "chart_id", chartID, "bytes", len(csvData))
	return nil
}

// UpdateMetadata merges the describe block (and color overrides, when given)
// into the chart.
func (c *Client) UpdateMetadata(ctx context.Context, chartID string, meta Metadata) error {
	describe := map[string]string{
		"intro":       meta.Intro,
		"byline":      meta.Byline,
		"source-name": meta.SourceName,
		"source-url":  meta.SourceURL,
	}
	metadata := map[string]interface{}{
		"describe": describe,
	}
	if len(meta.CustomColors) > 0 {
		metadata["visualize"] = map[string]interface{}{
			"custom-colors": meta.CustomColors,
		}
	}

	req, err := resilient.NewJSONRequest(
		http.MethodPatch,
		fmt.Sprintf("%s/v3/charts/%s", c.baseURL, chartID),
		c.authHeaders(),
		map[string]interface{}{"metadata": metadata},
	)
	if err != nil {
		return err
	}

	if _, err := c.exec.Do(ctx, req); err != nil {
		return fmt.Errorf("failed to update chart metadata: %w", err)
	}

	c.logger.Info("updated chart metadata", "chart_id", chartID)
	return nil
}

// Publish publishes the chart.
func (c *Client) Publish(ctx context.Context, chartID string) error {
	req, err := resilient.NewJSONRequest(
		http.MethodPost,
		fmt.Sprintf("%s/v3/charts/%s/publish", c.baseURL, chartID),
		c.authHeaders(),
		struct{}{},
	)
	if err != nil {
		return err
	}

	if _, err := c.exec.Do(ctx, req); err != nil {
		return fmt.Errorf("failed to publish chart: %w", err)
	}

	c.logger.Info("published chart", "chart_id", chartID)
	return nil
}

// PublicURL derives the public viewing URL for a chart id.
func (c *Client) PublicURL(chartID string) string {
	if c.publicURLBase != "" {
		return fmt.Sprintf("%s/%s/", c.publicURLBase, chartID)
	}
	return fmt.Sprintf(publicURLFormat, chartID)
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
	}
}
