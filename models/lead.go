package models

import (
	"encoding/json"
	"time"
)

// PropertyType is the category of property a buyer is interested in.
type PropertyType string

const (
	PropertyResidential PropertyType = "residential"
	PropertyCommercial  PropertyType = "commercial"
	PropertyIndustrial  PropertyType = "industrial"
	PropertyLand        PropertyType = "land"
)

func (p PropertyType) Valid() bool {
	switch p {
	case PropertyResidential, PropertyCommercial, PropertyIndustrial, PropertyLand:
		return true
	}
	return false
}

// LeadStatus is a free-form workflow label; any status may move to any
// other status, there is no enforced transition graph.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusConverted LeadStatus = "converted"
	StatusClosed    LeadStatus = "closed"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusClosed:
		return true
	}
	return false
}

type LeadPriority string

const (
	PriorityLow    LeadPriority = "low"
	PriorityMedium LeadPriority = "medium"
	PriorityHigh   LeadPriority = "high"
)

func (p LeadPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type LeadSource string

const (
	SourceWebsite       LeadSource = "website"
	SourceReferral      LeadSource = "referral"
	SourceSocial        LeadSource = "social"
	SourceAdvertisement LeadSource = "advertisement"
	SourceOther         LeadSource = "other"
)

func (s LeadSource) Valid() bool {
	switch s {
	case SourceWebsite, SourceReferral, SourceSocial, SourceAdvertisement, SourceOther:
		return true
	}
	return false
}

// BHKType is the bedroom-hall-kitchen configuration, required for
// residential property interest.
type BHKType string

const (
	BHK1 BHKType = "1bhk"
	BHK2 BHKType = "2bhk"
	BHK3 BHKType = "3bhk"
	BHK4 BHKType = "4bhk"
	BHK5 BHKType = "5bhk"
)

func (b BHKType) Valid() bool {
	switch b {
	case BHK1, BHK2, BHK3, BHK4, BHK5:
		return true
	}
	return false
}

// Lead represents a single buyer lead.
//
// Invariants: MaxBudget >= MinBudget, both non-negative; BHKType is set when
// PropertyType is residential at creation time. CreatedAt is immutable;
// UpdatedAt and LastActivityAt are bumped on every mutation.
type Lead struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"userId"`

	// Contact information
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"not null" json:"email"`
	Phone string `gorm:"not null" json:"phone"`

	// Property requirements
	PropertyType      PropertyType `gorm:"not null" json:"propertyType"`
	BHKType           *BHKType     `json:"bhkType"`
	PreferredLocation *string      `json:"preferredLocation"`
	MinBudget         int          `gorm:"not null" json:"minBudget"`
	MaxBudget         int          `gorm:"not null" json:"maxBudget"`

	// Workflow
	Status   LeadStatus   `gorm:"not null;default:'new'" json:"status"`
	Priority LeadPriority `gorm:"not null;default:'medium'" json:"priority"`
	Source   LeadSource   `gorm:"not null;default:'website'" json:"source"`
	Notes    *string      `json:"notes"`

	// Timestamps
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastActivityAt time.Time `gorm:"index" json:"lastActivityAt"`
}

// HistoryAction tags a lead history entry.
type HistoryAction string

const (
	ActionCreated         HistoryAction = "created"
	ActionUpdated         HistoryAction = "updated"
	ActionDeleted         HistoryAction = "deleted"
	ActionStatusChanged   HistoryAction = "status_changed"
	ActionPriorityChanged HistoryAction = "priority_changed"
	ActionNoteAdded       HistoryAction = "note_added"
)

// LeadHistory is an append-only audit entry. Entries are never mutated or
// deleted once written and are read newest-first.
type LeadHistory struct {
	ID     string `gorm:"primaryKey" json:"id"`
	LeadID string `gorm:"index;not null" json:"leadId"`
	// Acting user. Without a real auth context this is the "system"
	// placeholder.
	UserID string `gorm:"not null" json:"userId"`

	Action        HistoryAction   `gorm:"not null" json:"action"`
	FieldName     *string         `json:"fieldName,omitempty"`
	PreviousValue json.RawMessage `gorm:"type:jsonb" json:"previousValue,omitempty"`
	NewValue      json.RawMessage `gorm:"type:jsonb" json:"newValue,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
}
