package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"propleads/models"
)

// GormStore implements Storage against PostgreSQL. It mirrors the memory
// adapter's semantics; filters and sorting are pushed down to SQL and every
// mutation commits together with its history entry in one transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// User operations

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "LOWER(email) = LOWER(?)", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Lead operations

func (s *GormStore) GetLeads(ctx context.Context, userID string, filters *LeadFilters) ([]LeadWithMeta, error) {
	return s.findLeads(ctx, userID, "", filters)
}

func (s *GormStore) GetLead(ctx context.Context, id, userID string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *GormStore) CreateLead(ctx context.Context, input LeadInput, userID string) (*models.Lead, error) {
	now := time.Now().UTC()
	lead := models.Lead{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              input.Name,
		Email:             input.Email,
		Phone:             input.Phone,
		PropertyType:      input.PropertyType,
		BHKType:           input.BHKType,
		PreferredLocation: input.PreferredLocation,
		MinBudget:         input.MinBudget,
		MaxBudget:         input.MaxBudget,
		Status:            input.Status,
		Priority:          input.Priority,
		Source:            input.Source,
		Notes:             input.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastActivityAt:    now,
	}
	if lead.Status == "" {
		lead.Status = models.StatusNew
	}
	if lead.Priority == "" {
		lead.Priority = models.PriorityMedium
	}
	if lead.Source == "" {
		lead.Source = models.SourceWebsite
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lead).Error; err != nil {
			return err
		}
		entry := newHistoryEntry(lead.ID, models.ActionCreated, nil, nil, lead, "Lead created")
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *GormStore) UpdateLead(ctx context.Context, id string, update LeadUpdate, userID string) (*models.Lead, error) {
	var updated models.Lead

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous models.Lead
		if err := tx.First(&previous, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return err
		}

		updated = previous
		update.apply(&updated)
		now := time.Now().UTC()
		updated.UpdatedAt = now
		updated.LastActivityAt = now

		if err := tx.Save(&updated).Error; err != nil {
			return err
		}

		entries := fieldHistoryEntries(previous, updated)
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *GormStore) DeleteLead(ctx context.Context, id, userID string) (bool, error) {
	deleted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.First(&lead, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Lead{}, "id = ?", id).Error; err != nil {
			return err
		}
		entry := newHistoryEntry(id, models.ActionDeleted, nil, lead, nil, "Lead deleted")
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Statistics and history

func (s *GormStore) GetLeadStats(ctx context.Context, userID string) (*LeadStats, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Select("status", "created_at").
		Where("user_id = ?", userID).
		Find(&leads).Error
	if err != nil {
		return nil, err
	}
	return computeStats(leads, time.Now().UTC()), nil
}

func (s *GormStore) GetLeadHistory(ctx context.Context, leadID, userID string) ([]models.LeadHistory, error) {
	// Fail closed on unknown ids and ownership mismatches.
	if _, err := s.GetLead(ctx, leadID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.LeadHistory{}, nil
		}
		return nil, err
	}

	entries := make([]models.LeadHistory, 0)
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Search and pagination

func (s *GormStore) SearchLeads(ctx context.Context, userID, query string, filters *LeadFilters) ([]LeadWithMeta, error) {
	return s.findLeads(ctx, userID, query, filters)
}

func (s *GormStore) GetLeadsPage(ctx context.Context, userID string, page, limit int, filters *LeadFilters) (*PaginatedLeads, error) {
	var total int64
	if err := s.leadQuery(ctx, userID, filters).Model(&models.Lead{}).Count(&total).Error; err != nil {
		return nil, err
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (int(total) + limit - 1) / limit
	}

	var leads []models.Lead
	err := s.leadQuery(ctx, userID, filters).
		Order(orderClause(filters)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, err
	}

	withMeta, err := s.attachMeta(ctx, leads)
	if err != nil {
		return nil, err
	}

	return &PaginatedLeads{
		Leads:      withMeta,
		Total:      int(total),
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// Internals

func (s *GormStore) findLeads(ctx context.Context, userID, query string, filters *LeadFilters) ([]LeadWithMeta, error) {
	q := s.leadQuery(ctx, userID, filters)

	if term := trimQuery(query); term != "" {
		like := "%" + term + "%"
		q = q.Where(
			"name ILIKE ? OR email ILIKE ? OR phone LIKE ? OR preferred_location ILIKE ? OR notes ILIKE ?",
			like, like, like, like, like,
		)
	}

	var leads []models.Lead
	if err := q.Order(orderClause(filters)).Find(&leads).Error; err != nil {
		return nil, err
	}
	return s.attachMeta(ctx, leads)
}

func (s *GormStore) leadQuery(ctx context.Context, userID string, f *LeadFilters) *gorm.DB {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f == nil {
		return q
	}

	if f.PropertyType != "" {
		q = q.Where("property_type = ?", f.PropertyType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.BHKType != "" {
		q = q.Where("bhk_type = ?", f.BHKType)
	}
	if f.MinBudget != nil {
		q = q.Where("max_budget >= ?", *f.MinBudget)
	}
	if f.MaxBudget != nil {
		q = q.Where("min_budget <= ?", *f.MaxBudget)
	}
	if f.Location != "" {
		q = q.Where("preferred_location ILIKE ?", "%"+f.Location+"%")
	}
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("created_at <= ?", *f.DateTo)
	}
	return q
}

// orderClause maps sortBy to a whitelisted column expression. Anything
// outside the whitelist falls back to the default ordering.
func orderClause(f *LeadFilters) string {
	column := "created_at"
	if f != nil {
		switch f.SortBy {
		case "name":
			column = "LOWER(name)"
		case "createdAt":
			column = "created_at"
		case "updatedAt":
			column = "updated_at"
		case "lastActivityAt":
			column = "last_activity_at"
		case "minBudget":
			column = "min_budget"
		case "maxBudget":
			column = "max_budget"
		}
	}

	direction := "DESC"
	if f != nil && f.SortDirection == "asc" {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s", column, direction)
}

// attachMeta derives initials and the most recent history action for each
// returned lead. History is fetched for all ids in one query.
func (s *GormStore) attachMeta(ctx context.Context, leads []models.Lead) ([]LeadWithMeta, error) {
	result := make([]LeadWithMeta, 0, len(leads))
	if len(leads) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(leads))
	for _, lead := range leads {
		ids = append(ids, lead.ID)
	}

	var entries []models.LeadHistory
	err := s.db.WithContext(ctx).
		Select("lead_id", "action", "created_at").
		Where("lead_id IN ?", ids).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]string, len(leads))
	for _, entry := range entries {
		if _, seen := latest[entry.LeadID]; !seen {
			latest[entry.LeadID] = string(entry.Action)
		}
	}

	for _, lead := range leads {
		activity := latest[lead.ID]
		if activity == "" {
			activity = string(models.ActionCreated)
		}
		result = append(result, LeadWithMeta{
			Lead:             lead,
			Initials:         initials(lead.Name),
			LastActivityType: activity,
		})
	}
	return result, nil
}
