// Package store owns all lead, user and history state. Every read returns a
// copy; callers never hold references into the underlying collections.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"propleads/models"
)

// trimQuery normalizes a free-text search term; an all-whitespace query is
// treated as absent.
func trimQuery(q string) string {
	return strings.TrimSpace(q)
}

// ErrNotFound is returned for unknown ids and for ownership mismatches.
// The two cases are deliberately indistinguishable so that the API never
// leaks whether a record exists under another user.
var ErrNotFound = errors.New("record not found")

// SystemUserID is recorded as the acting user on history entries until a
// real auth context exists.
const SystemUserID = "system"

// LeadFilters narrows lead queries. All fields are optional and conjunctive:
// a lead must satisfy every supplied filter. Zero values mean "not set".
type LeadFilters struct {
	PropertyType string
	Status       string
	Priority     string
	Source       string
	BHKType      string
	// MinBudget matches leads whose MaxBudget is at least this value and
	// MaxBudget matches leads whose MinBudget is at most this value, so the
	// pair selects leads whose budget range overlaps the requested one.
	MinBudget *int
	MaxBudget *int
	// Location is a case-insensitive substring match on PreferredLocation.
	Location string
	// Inclusive bounds on CreatedAt.
	DateFrom *time.Time
	DateTo   *time.Time

	// SortBy is one of name, createdAt, updatedAt, lastActivityAt,
	// minBudget, maxBudget. Empty means createdAt descending.
	SortBy        string
	SortDirection string // "asc" or "desc", default desc
}

// LeadInput carries a validated create request. Validation happens at the
// boundary; the store assumes well-formed input and only applies defaults.
type LeadInput struct {
	Name              string
	Email             string
	Phone             string
	PropertyType      models.PropertyType
	BHKType           *models.BHKType
	PreferredLocation *string
	MinBudget         int
	MaxBudget         int
	Status            models.LeadStatus
	Priority          models.LeadPriority
	Source            models.LeadSource
	Notes             *string
}

// LeadUpdate carries a partial update; nil fields are left unchanged.
type LeadUpdate struct {
	Name              *string
	Email             *string
	Phone             *string
	PropertyType      *models.PropertyType
	BHKType           *models.BHKType
	PreferredLocation *string
	MinBudget         *int
	MaxBudget         *int
	Status            *models.LeadStatus
	Priority          *models.LeadPriority
	Source            *models.LeadSource
	Notes             *string
}

// apply merges the non-nil fields over an existing record. Absent fields
// stay unchanged; optional fields cannot be cleared back to null.
func (u LeadUpdate) apply(lead *models.Lead) {
	if u.Name != nil {
		lead.Name = *u.Name
	}
	if u.Email != nil {
		lead.Email = *u.Email
	}
	if u.Phone != nil {
		lead.Phone = *u.Phone
	}
	if u.PropertyType != nil {
		lead.PropertyType = *u.PropertyType
	}
	if u.BHKType != nil {
		lead.BHKType = u.BHKType
	}
	if u.PreferredLocation != nil {
		lead.PreferredLocation = u.PreferredLocation
	}
	if u.MinBudget != nil {
		lead.MinBudget = *u.MinBudget
	}
	if u.MaxBudget != nil {
		lead.MaxBudget = *u.MaxBudget
	}
	if u.Status != nil {
		lead.Status = *u.Status
	}
	if u.Priority != nil {
		lead.Priority = *u.Priority
	}
	if u.Source != nil {
		lead.Source = *u.Source
	}
	if u.Notes != nil {
		lead.Notes = u.Notes
	}
}

// LeadWithMeta is a lead augmented with display metadata derived at read
// time.
type LeadWithMeta struct {
	models.Lead
	Initials         string `json:"initials"`
	LastActivityType string `json:"lastActivityType"`
}

// LeadStats aggregates a user's leads. The *Change figures compare the
// trailing 30-day creation cohort against the 30 days before it.
type LeadStats struct {
	TotalLeads     int     `json:"totalLeads"`
	ActiveLeads    int     `json:"activeLeads"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`

	TotalLeadsChange     float64 `json:"totalLeadsChange"`
	ActiveLeadsChange    float64 `json:"activeLeadsChange"`
	ConversionsChange    float64 `json:"conversionsChange"`
	ConversionRateChange float64 `json:"conversionRateChange"`
}

// PaginatedLeads is one page of a filtered, sorted lead listing.
type PaginatedLeads struct {
	Leads      []LeadWithMeta `json:"leads"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

// Storage is the capability contract over users, leads and lead history.
// Implementations must apply each mutation and its history side effect as
// one atomic unit.
type Storage interface {
	// User operations
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, name string) (*models.User, error)

	// Lead operations. Ownership mismatches surface as ErrNotFound (or
	// false from DeleteLead), never as a distinct error.
	GetLeads(ctx context.Context, userID string, filters *LeadFilters) ([]LeadWithMeta, error)
	GetLead(ctx context.Context, id, userID string) (*models.Lead, error)
	CreateLead(ctx context.Context, input LeadInput, userID string) (*models.Lead, error)
	UpdateLead(ctx context.Context, id string, update LeadUpdate, userID string) (*models.Lead, error)
	DeleteLead(ctx context.Context, id, userID string) (bool, error)

	// Statistics and history
	GetLeadStats(ctx context.Context, userID string) (*LeadStats, error)
	GetLeadHistory(ctx context.Context, leadID, userID string) ([]models.LeadHistory, error)

	// Search and pagination
	SearchLeads(ctx context.Context, userID, query string, filters *LeadFilters) ([]LeadWithMeta, error)
	GetLeadsPage(ctx context.Context, userID string, page, limit int, filters *LeadFilters) (*PaginatedLeads, error)
}
