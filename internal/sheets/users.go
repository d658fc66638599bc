package sheets

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCredentials is returned when no row matches email and password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// User is one row of the users sheet.
type User struct {
	Email        string `json:"email"`
	Password     string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Company      string `json:"company"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Country      string `json:"country"`
	RegisteredAt string `json:"registered_at"`
}

// Name returns the display name.
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Campaign is one row of the campaigns sheet.
type Campaign struct {
	ID           string `json:"id"`
	ClientEmail  string `json:"client_email"`
	Name         string `json:"name"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	SentAt       string `json:"sent_at"`
	ListID       string `json:"list_id"`
	Sent         int64  `json:"sent"`
	Opens        int64  `json:"opens"`
	Clicks       int64  `json:"clicks"`
	Unsubscribes int64  `json:"unsubscribes"`
}

// ValuesReader reads a sheet range. *Client implements it.
type ValuesReader interface {
	Values(ctx context.Context, rng string) ([][]string, error)
}

// UserRepository maps the users and campaigns sheets to typed records.
type UserRepository struct {
	reader         ValuesReader
	usersRange     string
	campaignsRange string
}

// NewUserRepository creates a repository over the given ranges.
func NewUserRepository(reader ValuesReader, usersRange, campaignsRange string) *UserRepository {
	if usersRange == "" {
		usersRange = "usuarios!A:J"
	}
	if campaignsRange == "" {
		campaignsRange = "campanas!A:L"
	}
	return &UserRepository{reader: reader, usersRange: usersRange, campaignsRange: campaignsRange}
}

// cell returns row[i] trimmed, or "" when the row is short.
func cell(row []string, i int) string {
	return strings.TrimSpace(rawCell(row, i))
}

// rawCell returns row[i] as stored, or "" when the row is short.
func rawCell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// count parses a numeric cell, treating anything unparsable as zero.
func count(row []string, i int) int64 {
	n, err := strconv.ParseInt(cell(row, i), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Users returns every user row, skipping the header.
func (r *UserRepository) Users(ctx context.Context) ([]User, error) {
	rows, err := r.reader.Values(ctx, r.usersRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	var users []User
	for i, row := range rows {
		if i == 0 || cell(row, 0) == "" {
			continue
		}
		users = append(users, User{
			Email:        cell(row, 0),
			Password:     rawCell(row, 1),
			FirstName:    cell(row, 2),
			LastName:     cell(row, 3),
			Phone:        cell(row, 4),
			Company:      cell(row, 5),
			Address:      cell(row, 6),
			City:         cell(row, 7),
			Country:      cell(row, 8),
			RegisteredAt: cell(row, 9),
		})
	}
	return users, nil
}

// Authenticate finds the first user row matching both email and password.
// Duplicate rows for one email are all tried.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	users, err := r.Users(ctx)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	for _, u := range users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1 {
			user := u
			return &user, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// CampaignsFor returns the campaign rows recorded for a client email.
func (r *UserRepository) CampaignsFor(ctx context.Context, email string) ([]Campaign, error) {
	rows, err := r.reader.Values(ctx, r.campaignsRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaigns: %w", err)
	}

	out := []Campaign{}
	for i, row := range rows {
		if i == 0 || !strings.EqualFold(cell(row, 1), email) {
			continue
		}
		out = append(out, Campaign{
			ID:           cell(row, 0),
			ClientEmail:  cell(row, 1),
			Name:         cell(row, 2),
			Subject:      cell(row, 3),
			Status:       cell(row, 4),
			CreatedAt:    cell(row, 5),
			SentAt:       cell(row, 6),
			ListID:       cell(row, 7),
			Sent:         count(row, 8),
			Opens:        count(row, 9),
			Clicks:       count(row, 10),
			Unsubscribes: count(row, 11),
		})
	}
	return out, nil
}
