package emailoctopus

import (
	"errors"
	"fmt"
	"net/http"
)

// Campaign statuses reported by EmailOctopus.
const (
	StatusDraft     = "DRAFT"
	StatusSending   = "SENDING"
	StatusSent      = "SENT"
	StatusScheduled = "SCHEDULED"
)

// Contact statuses.
const (
	ContactSubscribed   = "SUBSCRIBED"
	ContactUnsubscribed = "UNSUBSCRIBED"
	ContactPending      = "PENDING"
)

var (
	// ErrNotFound is matched by an APIError with status 404.
	ErrNotFound = errors.New("emailoctopus: not found")
	// ErrUnsupported is returned for operations the public API does not offer.
	ErrUnsupported = errors.New("emailoctopus: operation not supported by the API")
)

// APIError is returned when EmailOctopus answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
	Method     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Config holds EmailOctopus API configuration
type Config struct {
	APIKey    string
	BaseURL   string
	PageLimit int
}

// Paging is the cursor block attached to collection responses.
type Paging struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

type listResponse[T any] struct {
	Data   []T    `json:"data"`
	Paging Paging `json:"paging"`
}

// ListField describes a custom field on a list.
type ListField struct {
	Tag      string  `json:"tag"`
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Fallback *string `json:"fallback"`
}

// ListCounts holds subscriber counts by status.
type ListCounts struct {
	Pending      int64 `json:"pending"`
	Subscribed   int64 `json:"subscribed"`
	Unsubscribed int64 `json:"unsubscribed"`
}

// List is a contact list.
type List struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DoubleOptIn bool        `json:"double_opt_in"`
	Fields      []ListField `json:"fields"`
	Counts      ListCounts  `json:"counts"`
	CreatedAt   string      `json:"created_at"`
}

// Contact is a subscriber on a list.
type Contact struct {
	ID           string                 `json:"id"`
	EmailAddress string                 `json:"email_address"`
	Fields       map[string]interface{} `json:"fields"`
	Tags         []string               `json:"tags"`
	Status       string                 `json:"status"`
	CreatedAt    string                 `json:"created_at"`
}

// ContactInput is a contact to create, as submitted by the import form.
type ContactInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// CampaignFrom is the sender identity of a campaign.
type CampaignFrom struct {
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
}

// CampaignContent holds the campaign bodies.
type CampaignContent struct {
	HTML      string `json:"html"`
	PlainText string `json:"plain_text"`
}

// Campaign is an outbound email blast.
type Campaign struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Name      string          `json:"name"`
	Subject   string          `json:"subject"`
	To        []string        `json:"to"`
	From      CampaignFrom    `json:"from"`
	Content   CampaignContent `json:"content"`
	CreatedAt string          `json:"created_at"`
	SentAt    *string         `json:"sent_at"`
}

// TotalUnique pairs a raw count with its unique-recipient count.
type TotalUnique struct {
	Total  int64 `json:"total"`
	Unique int64 `json:"unique"`
}

// Bounces splits bounces by type.
type Bounces struct {
	Hard int64 `json:"hard"`
	Soft int64 `json:"soft"`
}

// Total returns hard plus soft bounces.
func (b Bounces) Total() int64 {
	return b.Hard + b.Soft
}

// CampaignReport is the summary report of a sent campaign.
type CampaignReport struct {
	ID           string      `json:"id,omitempty"`
	Sent         int64       `json:"sent"`
	Bounced      Bounces     `json:"bounced"`
	Delivered    int64       `json:"delivered"`
	Opened       TotalUnique `json:"opened"`
	Clicked      TotalUnique `json:"clicked"`
	Unsubscribed int64       `json:"unsubscribed"`
	Complained   int64       `json:"complained"`
}

// SendCheck explains whether a campaign can be sent.
type SendCheck struct {
	CanSend bool   `json:"can_send"`
	Reason  string `json:"reason,omitempty"`
}
