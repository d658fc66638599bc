// Package sheets reads the Google Sheets spreadsheet that holds the
// dashboard's users and their campaign records.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/zysolutions/octodash/internal/pkg/httpretry"
)

const readonlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// Config holds Google Sheets API configuration
type Config struct {
	BaseURL         string
	SpreadsheetID   string
	APIKey          string
	CredentialsFile string
	Timeout         time.Duration
}

// Client reads cell ranges from one spreadsheet.
type Client struct {
	baseURL       string
	spreadsheetID string
	apiKey        string
	httpClient    httpretry.HTTPDoer
}

type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// NewClient creates a Sheets client. A service-account credentials file
// takes precedence over an API key.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := &http.Client{Timeout: timeout}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials: %w", err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, readonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
		base = jwtCfg.Client(ctx)
		base.Timeout = timeout
	} else if cfg.APIKey == "" {
		return nil, fmt.Errorf("google sheets: api_key or credentials_file is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		apiKey:        cfg.APIKey,
		httpClient:    httpretry.NewRetryClient(base, 2),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Values returns the rows of an A1 range such as "usuarios!A:J".
func (c *Client) Values(ctx context.Context, rng string) ([][]string, error) {
	reqURL := fmt.Sprintf("%s/%s/values/%s", c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(rng))
	if c.apiKey != "" {
		reqURL += "?key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out valuesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Values, nil
}
