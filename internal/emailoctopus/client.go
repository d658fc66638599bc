package emailoctopus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/zysolutions/octodash/internal/pkg/httpretry"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// Client is the EmailOctopus API client
type Client struct {
	baseURL     string
	apiKey      string
	pageLimit   int
	importDelay time.Duration
	httpClient  httpretry.HTTPDoer
	clock       clockwork.Clock
}

// NewClient creates a new EmailOctopus API client
func NewClient(config Config) *Client {
	pageLimit := config.PageLimit
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		apiKey:      config.APIKey,
		pageLimit:   pageLimit,
		importDelay: 200 * time.Millisecond,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 3),
		clock: clockwork.NewRealClock(),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SetClock replaces the clock used to pace bulk imports.
func (c *Client) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// SetImportDelay sets the pause between contacts in ImportContacts.
func (c *Client) SetImportDelay(d time.Duration) {
	c.importDelay = d
}

// Call sends one request to the API and returns the raw JSON response.
// The endpoint may already carry a query string; the API key is appended.
// The body is only sent for non-GET methods.
func (c *Client) Call(ctx context.Context, endpoint, method string, body interface{}) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	var reqBody io.Reader
	if body != nil && method != http.MethodGet {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	reqURL := c.baseURL + endpoint + sep + "api_key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = logger.RedactAPIKey(ue.URL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Endpoint:   endpoint,
			Method:     method,
		}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(respBody), nil
}

// getAll walks a paginated collection until the API stops returning a next page.
func getAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s?limit=%d", path, c.pageLimit)
		if page > 1 {
			endpoint += "&page=" + strconv.Itoa(page)
		}

		raw, err := c.Call(ctx, endpoint, http.MethodGet, nil)
		if err != nil {
			return nil, err
		}

		var response listResponse[T]
		if err := json.Unmarshal(raw, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		all = append(all, response.Data...)

		if response.Paging.Next == nil || *response.Paging.Next == "" || len(response.Data) == 0 {
			break
		}
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

func getOne[T any](ctx context.Context, c *Client, method, endpoint string, body interface{}) (*T, error) {
	raw, err := c.Call(ctx, endpoint, method, body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// ========== List Methods ==========

// GetLists retrieves every contact list on the account
func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	return getAll[List](ctx, c, "/lists")
}

// CreateList creates a list with the standard name fields
func (c *Client) CreateList(ctx context.Context, name string) (*List, error) {
	body := map[string]interface{}{
		"name": name,
		"fields": []map[string]string{
			{"tag": "EmailAddress", "type": "TEXT", "label": "Email address"},
			{"tag": "FirstName", "type": "TEXT", "label": "First name"},
			{"tag": "LastName", "type": "TEXT", "label": "Last name"},
		},
	}
	return getOne[List](ctx, c, http.MethodPost, "/lists", body)
}

// ========== Contact Methods ==========

// GetContacts retrieves every contact on a list
func (c *Client) GetContacts(ctx context.Context, listID string) ([]Contact, error) {
	return getAll[Contact](ctx, c, "/lists/"+url.PathEscape(listID)+"/contacts")
}

// CreateContact subscribes a single contact to a list
func (c *Client) CreateContact(ctx context.Context, listID string, in ContactInput) (*Contact, error) {
	body := map[string]interface{}{
		"email_address": in.Email,
		"fields": map[string]string{
			"EmailAddress": in.Email,
			"FirstName":    in.FirstName,
			"LastName":     in.LastName,
		},
		"status": ContactSubscribed,
	}
	return getOne[Contact](ctx, c, http.MethodPost, "/lists/"+url.PathEscape(listID)+"/contacts", body)
}

// DeleteContact removes a contact from a list
func (c *Client) DeleteContact(ctx context.Context, listID, contactID string) error {
	endpoint := fmt.Sprintf("/lists/%s/contacts/%s", url.PathEscape(listID), url.PathEscape(contactID))
	_, err := c.Call(ctx, endpoint, http.MethodDelete, nil)
	return err
}

// ImportContacts creates contacts one at a time, pausing between requests
// to stay under the API rate limit. Failures are counted, not fatal.
func (c *Client) ImportContacts(ctx context.Context, listID string, contacts []ContactInput) (*ImportResult, error) {
	result := &ImportResult{}
	for i, in := range contacts {
		if i > 0 && c.importDelay > 0 {
			select {
			case <-c.clock.After(c.importDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		if _, err := c.CreateContact(ctx, listID, in); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", in.Email, err))
			logger.Warn("EmailOctopus: import contact failed", "list_id", listID, "email", in.Email, "error", err.Error())
			continue
		}
		result.Success++
	}
	return result, nil
}

// ========== Campaign Methods ==========

// GetCampaigns retrieves every campaign on the account
func (c *Client) GetCampaigns(ctx context.Context) ([]Campaign, error) {
	return getAll[Campaign](ctx, c, "/campaigns")
}

// GetCampaign retrieves a single campaign by ID
func (c *Client) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	return getOne[Campaign](ctx, c, http.MethodGet, "/campaigns/"+url.PathEscape(campaignID), nil)
}

// GetCampaignReport retrieves the summary report of a campaign
func (c *Client) GetCampaignReport(ctx context.Context, campaignID string) (*CampaignReport, error) {
	return getOne[CampaignReport](ctx, c, http.MethodGet, "/campaigns/"+url.PathEscape(campaignID)+"/reports/summary", nil)
}

// SendCampaign asks the API to send a campaign immediately
func (c *Client) SendCampaign(ctx context.Context, campaignID string) error {
	_, err := c.Call(ctx, "/campaigns/"+url.PathEscape(campaignID)+"/send", http.MethodPost, map[string]interface{}{})
	return err
}

// CreateCampaign is not offered by the public API; campaigns are drafted in
// the EmailOctopus dashboard.
func (c *Client) CreateCampaign(ctx context.Context, campaign Campaign) (*Campaign, error) {
	return nil, ErrUnsupported
}

// CanSendCampaign checks that a campaign is a complete draft.
func (c *Client) CanSendCampaign(ctx context.Context, campaignID string) (*SendCheck, error) {
	campaign, err := c.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &SendCheck{Reason: "campaign not found"}, nil
		}
		return nil, err
	}
	return checkSendable(campaign), nil
}

func checkSendable(campaign *Campaign) *SendCheck {
	switch {
	case campaign.Status != StatusDraft:
		return &SendCheck{Reason: fmt.Sprintf("campaign is %s, only drafts can be sent", campaign.Status)}
	case strings.TrimSpace(campaign.Subject) == "":
		return &SendCheck{Reason: "campaign has no subject"}
	case len(campaign.To) == 0:
		return &SendCheck{Reason: "campaign has no recipient lists"}
	case strings.TrimSpace(campaign.Content.HTML) == "" && strings.TrimSpace(campaign.Content.PlainText) == "":
		return &SendCheck{Reason: "campaign has no content"}
	}
	return &SendCheck{CanSend: true}
}

// SendCampaignNow validates a campaign and sends it. A campaign that fails
// validation is reported through the returned SendCheck without an error.
func (c *Client) SendCampaignNow(ctx context.Context, campaignID string) (*SendCheck, error) {
	check, err := c.CanSendCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !check.CanSend {
		return check, nil
	}
	if err := c.SendCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	logger.Info("EmailOctopus: campaign sent", "campaign_id", campaignID)
	return check, nil
}
