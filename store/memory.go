package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"propleads/models"
)

// MemoryStore is the authoritative in-memory Storage adapter. State lives
// for the process lifetime only. A single mutex guards all three
// collections, so a mutation and its history entry always land together.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User
	leads   map[string]models.Lead
	history []models.LeadHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
		leads: make(map[string]models.Lead),
	}
}

// User operations

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(_ context.Context, email, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.users[user.ID] = user
	return &user, nil
}

// Lead operations

func (s *MemoryStore) GetLeads(_ context.Context, userID string, filters *LeadFilters) ([]LeadWithMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectLeads(userID, filters), nil
}

func (s *MemoryStore) GetLead(_ context.Context, id, userID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok || lead.UserID != userID {
		return nil, ErrNotFound
	}
	return &lead, nil
}

func (s *MemoryStore) CreateLead(_ context.Context, input LeadInput, userID string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.leads[lead.ID] = lead
	s.appendHistory(lead.ID, models.ActionCreated, nil, nil, lead, "Lead created")

	return &lead, nil
}

func (s *MemoryStore) UpdateLead(_ context.Context, id string, update LeadUpdate, userID string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.leads[id]
	if !ok || previous.UserID != userID {
		return nil, ErrNotFound
	}

	updated := previous
	update.apply(&updated)

	now := time.Now().UTC()
	updated.UpdatedAt = now
	updated.LastActivityAt = now

	s.leads[id] = updated
	s.recordFieldChanges(previous, updated)

	return &updated, nil
}

func (s *MemoryStore) DeleteLead(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok || lead.UserID != userID {
		return false, nil
	}

	delete(s.leads, id)
	s.appendHistory(id, models.ActionDeleted, nil, lead, nil, "Lead deleted")

	return true, nil
}

// Statistics and history

func (s *MemoryStore) GetLeadStats(_ context.Context, userID string) (*LeadStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var userLeads []models.Lead
	for _, lead := range s.leads {
		if lead.UserID == userID {
			userLeads = append(userLeads, lead)
		}
	}
	return computeStats(userLeads, time.Now().UTC()), nil
}

func (s *MemoryStore) GetLeadHistory(_ context.Context, leadID, userID string) ([]models.LeadHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Fail closed: no lead, wrong owner, or already deleted all read the
	// same way.
	lead, ok := s.leads[leadID]
	if !ok || lead.UserID != userID {
		return []models.LeadHistory{}, nil
	}

	entries := make([]models.LeadHistory, 0)
	// The log is append-only, so walking backwards yields newest-first even
	// when timestamps collide.
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].LeadID == leadID {
			entries = append(entries, s.history[i])
		}
	}
	return entries, nil
}

// Search and pagination

func (s *MemoryStore) SearchLeads(ctx context.Context, userID, query string, filters *LeadFilters) ([]LeadWithMeta, error) {
	leads, err := s.GetLeads(ctx, userID, filters)
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return leads, nil
	}

	matched := make([]LeadWithMeta, 0, len(leads))
	for _, lead := range leads {
		if leadMatchesQuery(lead.Lead, term) {
			matched = append(matched, lead)
		}
	}
	return matched, nil
}

func (s *MemoryStore) GetLeadsPage(ctx context.Context, userID string, page, limit int, filters *LeadFilters) (*PaginatedLeads, error) {
	all, err := s.GetLeads(ctx, userID, filters)
	if err != nil {
		return nil, err
	}
	return paginateLeads(all, page, limit), nil
}

// paginateLeads slices one page out of the full filtered set. Out-of-range
// pages yield an empty page, not an error.
func paginateLeads(all []LeadWithMeta, page, limit int) *PaginatedLeads {
	total := len(all)
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	start := (page - 1) * limit
	if start < 0 || start >= total {
		return &PaginatedLeads{
			Leads:      []LeadWithMeta{},
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		}
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &PaginatedLeads{
		Leads:      all[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// Internals. Callers must hold at least a read lock.

func (s *MemoryStore) collectLeads(userID string, filters *LeadFilters) []LeadWithMeta {
	var userLeads []models.Lead
	for _, lead := range s.leads {
		if lead.UserID != userID {
			continue
		}
		if !matchFilters(lead, filters) {
			continue
		}
		userLeads = append(userLeads, lead)
	}

	sortLeads(userLeads, filters)

	result := make([]LeadWithMeta, 0, len(userLeads))
	for _, lead := range userLeads {
		result = append(result, LeadWithMeta{
			Lead:             lead,
			Initials:         initials(lead.Name),
			LastActivityType: s.lastActivityType(lead.ID),
		})
	}
	return result
}

func matchFilters(lead models.Lead, f *LeadFilters) bool {
	if f == nil {
		return true
	}
	if f.PropertyType != "" && string(lead.PropertyType) != f.PropertyType {
		return false
	}
	if f.Status != "" && string(lead.Status) != f.Status {
		return false
	}
	if f.Priority != "" && string(lead.Priority) != f.Priority {
		return false
	}
	if f.Source != "" && string(lead.Source) != f.Source {
		return false
	}
	if f.BHKType != "" && (lead.BHKType == nil || string(*lead.BHKType) != f.BHKType) {
		return false
	}
	if f.MinBudget != nil && lead.MaxBudget < *f.MinBudget {
		return false
	}
	if f.MaxBudget != nil && lead.MinBudget > *f.MaxBudget {
		return false
	}
	if f.Location != "" {
		if lead.PreferredLocation == nil ||
			!strings.Contains(strings.ToLower(*lead.PreferredLocation), strings.ToLower(f.Location)) {
			return false
		}
	}
	if f.DateFrom != nil && lead.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && lead.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func sortLeads(leads []models.Lead, f *LeadFilters) {
	if f == nil || f.SortBy == "" {
		// Default: newest first.
		sort.SliceStable(leads, func(i, j int) bool {
			return leads[i].CreatedAt.After(leads[j].CreatedAt)
		})
		return
	}

	asc := f.SortDirection == "asc"
	less := func(i, j int) bool { return false }

	switch f.SortBy {
	case "name":
		less = func(i, j int) bool {
			return strings.ToLower(leads[i].Name) < strings.ToLower(leads[j].Name)
		}
	case "createdAt":
		less = func(i, j int) bool { return leads[i].CreatedAt.Before(leads[j].CreatedAt) }
	case "updatedAt":
		less = func(i, j int) bool { return leads[i].UpdatedAt.Before(leads[j].UpdatedAt) }
	case "lastActivityAt":
		less = func(i, j int) bool { return leads[i].LastActivityAt.Before(leads[j].LastActivityAt) }
	case "minBudget":
		less = func(i, j int) bool { return leads[i].MinBudget < leads[j].MinBudget }
	case "maxBudget":
		less = func(i, j int) bool { return leads[i].MaxBudget < leads[j].MaxBudget }
	}

	sort.SliceStable(leads, func(i, j int) bool {
		if asc {
			return less(i, j)
		}
		return less(j, i)
	})
}

func leadMatchesQuery(lead models.Lead, term string) bool {
	if strings.Contains(strings.ToLower(lead.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(lead.Email), term) {
		return true
	}
	if strings.Contains(lead.Phone, term) {
		return true
	}
	if lead.PreferredLocation != nil &&
		strings.Contains(strings.ToLower(*lead.PreferredLocation), term) {
		return true
	}
	if lead.Notes != nil && strings.Contains(strings.ToLower(*lead.Notes), term) {
		return true
	}
	return false
}

// initials takes the uppercased first letters of up to the first two
// space-separated name tokens.
func initials(name string) string {
	var b strings.Builder
	for i, word := range strings.Fields(name) {
		if i == 2 {
			break
		}
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

func (s *MemoryStore) lastActivityType(leadID string) string {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].LeadID == leadID {
			return string(s.history[i].Action)
		}
	}
	return string(models.ActionCreated)
}

// appendHistory writes one audit entry. Callers must hold the write lock so
// the entry commits with the mutation it records.
func (s *MemoryStore) appendHistory(leadID string, action models.HistoryAction, fieldName *string, prev, next interface{}, note string) {
	s.history = append(s.history, newHistoryEntry(leadID, action, fieldName, prev, next, note))
}

func newHistoryEntry(leadID string, action models.HistoryAction, fieldName *string, prev, next interface{}, note string) models.LeadHistory {
	entry := models.LeadHistory{
		ID:            uuid.NewString(),
		LeadID:        leadID,
		UserID:        SystemUserID,
		Action:        action,
		FieldName:     fieldName,
		PreviousValue: marshalSnapshot(prev),
		NewValue:      marshalSnapshot(next),
		CreatedAt:     time.Now().UTC(),
	}
	if note != "" {
		entry.Notes = &note
	}
	return entry
}

func marshalSnapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func (s *MemoryStore) recordFieldChanges(previous, updated models.Lead) {
	s.history = append(s.history, fieldHistoryEntries(previous, updated)...)
}

// fieldHistoryEntries builds one history entry per changed field. Status,
// priority and notes changes carry their own action tags; everything else
// is tagged "updated".
func fieldHistoryEntries(previous, updated models.Lead) []models.LeadHistory {
	type fieldCheck struct {
		name   string
		action models.HistoryAction
		prev   interface{}
		next   interface{}
	}

	checks := []fieldCheck{
		{"status", models.ActionStatusChanged, previous.Status, updated.Status},
		{"priority", models.ActionPriorityChanged, previous.Priority, updated.Priority},
		{"name", models.ActionUpdated, previous.Name, updated.Name},
		{"email", models.ActionUpdated, previous.Email, updated.Email},
		{"phone", models.ActionUpdated, previous.Phone, updated.Phone},
		{"propertyType", models.ActionUpdated, previous.PropertyType, updated.PropertyType},
		{"bhkType", models.ActionUpdated, previous.BHKType, updated.BHKType},
		{"preferredLocation", models.ActionUpdated, previous.PreferredLocation, updated.PreferredLocation},
		{"minBudget", models.ActionUpdated, previous.MinBudget, updated.MinBudget},
		{"maxBudget", models.ActionUpdated, previous.MaxBudget, updated.MaxBudget},
		{"source", models.ActionUpdated, previous.Source, updated.Source},
		{"notes", models.ActionNoteAdded, previous.Notes, updated.Notes},
	}

	var entries []models.LeadHistory
	for _, check := range checks {
		prev := displayValue(check.prev)
		next := displayValue(check.next)
		if prev == next {
			continue
		}
		name := check.name
		note := fmt.Sprintf("%s changed from %q to %q", name, prev, next)
		entries = append(entries, newHistoryEntry(previous.ID, check.action, &name, check.prev, check.next, note))
	}
	return entries
}

func displayValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case *models.BHKType:
		if val == nil {
			return ""
		}
		return string(*val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// computeStats derives the aggregate counters plus period-over-period change
// figures from 30-day creation cohorts ending at now.
func computeStats(leads []models.Lead, now time.Time) *LeadStats {
	stats := &LeadStats{}

	stats.TotalLeads = len(leads)
	for _, lead := range leads {
		if lead.Status != models.StatusClosed {
			stats.ActiveLeads++
		}
		if lead.Status == models.StatusConverted {
			stats.Conversions++
		}
	}
	if stats.TotalLeads > 0 {
		stats.ConversionRate = float64(stats.Conversions) / float64(stats.TotalLeads) * 100
	}

	windowStart := now.AddDate(0, 0, -30)
	prevStart := now.AddDate(0, 0, -60)

	var curTotal, curActive, curConverted int
	var prevTotal, prevActive, prevConverted int
	for _, lead := range leads {
		switch {
		case !lead.CreatedAt.Before(windowStart):
			curTotal++
			if lead.Status != models.StatusClosed {
				curActive++
			}
			if lead.Status == models.StatusConverted {
				curConverted++
			}
		case !lead.CreatedAt.Before(prevStart):
			prevTotal++
			if lead.Status != models.StatusClosed {
				prevActive++
			}
			if lead.Status == models.StatusConverted {
				prevConverted++
			}
		}
	}

	stats.TotalLeadsChange = percentChange(curTotal, prevTotal)
	stats.ActiveLeadsChange = percentChange(curActive, prevActive)
	stats.ConversionsChange = percentChange(curConverted, prevConverted)

	// Rate change is expressed in percentage points rather than a relative
	// percentage.
	var curRate, prevRate float64
	if curTotal > 0 {
		curRate = float64(curConverted) / float64(curTotal) * 100
	}
	if prevTotal > 0 {
		prevRate = float64(prevConverted) / float64(prevTotal) * 100
	}
	stats.ConversionRateChange = curRate - prevRate

	return stats
}

func percentChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
