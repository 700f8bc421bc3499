package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"propleads/models"
	"propleads/store"
	"propleads/utils"
)

type LeadController struct {
	Store  store.Storage
	Logger *logrus.Logger
}

func NewLeadController(st store.Storage, logger *logrus.Logger) *LeadController {
	return &LeadController{
		Store:  st,
		Logger: logger,
	}
}

// CreateLead creates a new lead with validation
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input struct {
		UserID            string  `json:"userId"`
		Name              string  `json:"name" validate:"required,max=200"`
		Email             string  `json:"email" validate:"required,email"`
		Phone             string  `json:"phone" validate:"required,min=10"`
		PropertyType      string  `json:"propertyType" validate:"required,oneof=residential commercial industrial land"`
		BHKType           *string `json:"bhkType" validate:"required_if=PropertyType residential,omitempty,oneof=1bhk 2bhk 3bhk 4bhk 5bhk"`
		PreferredLocation *string `json:"preferredLocation"`
		MinBudget         *int    `json:"minBudget" validate:"required,min=0"`
		MaxBudget         *int    `json:"maxBudget" validate:"required,min=0"`
		Status            string  `json:"status" validate:"omitempty,oneof=new contacted qualified converted closed"`
		Priority          string  `json:"priority" validate:"omitempty,oneof=low medium high"`
		Source            string  `json:"source" validate:"omitempty,oneof=website referral social advertisement other"`
		Notes             *string `json:"notes"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if input.UserID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	details := utils.ValidateStruct(input)
	if input.MinBudget != nil && input.MaxBudget != nil && *input.MaxBudget < *input.MinBudget {
		details = append(details, "maxBudget must be greater than or equal to minBudget")
	}
	if details != nil {
		return utils.ValidationErrorResponse(c, details)
	}

	lead, err := lc.Store.CreateLead(c.Context(), store.LeadInput{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             input.Phone,
		PropertyType:      models.PropertyType(input.PropertyType),
		BHKType:           (*models.BHKType)(input.BHKType),
		PreferredLocation: input.PreferredLocation,
		MinBudget:         *input.MinBudget,
		MaxBudget:         *input.MaxBudget,
		Status:            models.LeadStatus(input.Status),
		Priority:          models.LeadPriority(input.Priority),
		Source:            models.LeadSource(input.Source),
		Notes:             input.Notes,
	}, input.UserID)
	if err != nil {
		utils.LogError("lead_create_failed", err, map[string]interface{}{"user_id": input.UserID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead")
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

// GetLeads returns a filtered, sorted page of leads. A non-empty search
// query narrows the filtered set before slicing the page.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 10
	}

	filters, err := parseLeadFilters(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	search := c.Query("search")
	if strings.TrimSpace(search) != "" {
		leads, err := lc.Store.SearchLeads(c.Context(), userID, search, filters)
		if err != nil {
			utils.LogError("lead_search_failed", err, map[string]interface{}{"user_id": userID})
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads")
		}
		return c.JSON(sliceLeadsPage(leads, page, limit))
	}

	result, err := lc.Store.GetLeadsPage(c.Context(), userID, page, limit, filters)
	if err != nil {
		utils.LogError("lead_list_failed", err, map[string]interface{}{"user_id": userID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads")
	}
	return c.JSON(result)
}

// GetLead returns a single lead by ID
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	lead, err := lc.Store.GetLead(c.Context(), c.Params("id"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found")
		}
		utils.LogError("lead_fetch_failed", err, map[string]interface{}{"id": c.Params("id")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead")
	}
	return c.JSON(lead)
}

// UpdateLead applies a partial update; absent fields stay unchanged
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var input struct {
		UserID            string  `json:"userId"`
		Name              *string `json:"name" validate:"omitempty,max=200"`
		Email             *string `json:"email" validate:"omitempty,email"`
		Phone             *string `json:"phone" validate:"omitempty,min=10"`
		PropertyType      *string `json:"propertyType" validate:"omitempty,oneof=residential commercial industrial land"`
		BHKType           *string `json:"bhkType" validate:"omitempty,oneof=1bhk 2bhk 3bhk 4bhk 5bhk"`
		PreferredLocation *string `json:"preferredLocation"`
		MinBudget         *int    `json:"minBudget" validate:"omitempty,min=0"`
		MaxBudget         *int    `json:"maxBudget" validate:"omitempty,min=0"`
		Status            *string `json:"status" validate:"omitempty,oneof=new contacted qualified converted closed"`
		Priority          *string `json:"priority" validate:"omitempty,oneof=low medium high"`
		Source            *string `json:"source" validate:"omitempty,oneof=website referral social advertisement other"`
		Notes             *string `json:"notes"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if input.UserID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	details := utils.ValidateStruct(input)
	if input.MinBudget != nil && input.MaxBudget != nil && *input.MaxBudget < *input.MinBudget {
		details = append(details, "maxBudget must be greater than or equal to minBudget")
	}
	if details != nil {
		return utils.ValidationErrorResponse(c, details)
	}

	lead, err := lc.Store.UpdateLead(c.Context(), c.Params("id"), store.LeadUpdate{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             input.Phone,
		PropertyType:      (*models.PropertyType)(input.PropertyType),
		BHKType:           (*models.BHKType)(input.BHKType),
		PreferredLocation: input.PreferredLocation,
		MinBudget:         input.MinBudget,
		MaxBudget:         input.MaxBudget,
		Status:            (*models.LeadStatus)(input.Status),
		Priority:          (*models.LeadPriority)(input.Priority),
		Source:            (*models.LeadSource)(input.Source),
		Notes:             input.Notes,
	}, input.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found")
		}
		utils.LogError("lead_update_failed", err, map[string]interface{}{"id": c.Params("id")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead")
	}
	return c.JSON(lead)
}

// DeleteLead deletes a lead
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	deleted, err := lc.Store.DeleteLead(c.Context(), c.Params("id"), userID)
	if err != nil {
		utils.LogError("lead_delete_failed", err, map[string]interface{}{"id": c.Params("id")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead")
	}
	if !deleted {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found")
	}

	return c.JSON(fiber.Map{
		"message": "Lead deleted successfully",
	})
}

// GetLeadStats returns aggregate statistics for a user's leads
func (lc *LeadController) GetLeadStats(c *fiber.Ctx) error {
	stats, err := lc.Store.GetLeadStats(c.Context(), c.Params("userId"))
	if err != nil {
		utils.LogError("lead_stats_failed", err, map[string]interface{}{"user_id": c.Params("userId")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead statistics")
	}
	return c.JSON(stats)
}

// GetLeadHistory returns a lead's audit trail, newest first
func (lc *LeadController) GetLeadHistory(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	history, err := lc.Store.GetLeadHistory(c.Context(), c.Params("id"), userID)
	if err != nil {
		utils.LogError("lead_history_failed", err, map[string]interface{}{"id": c.Params("id")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead history")
	}
	return c.JSON(history)
}

// ExportLeadsCSV exports all of a user's leads as a CSV attachment
func (lc *LeadController) ExportLeadsCSV(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "User ID is required")
	}

	leads, err := lc.Store.GetLeads(c.Context(), userID, nil)
	if err != nil {
		utils.LogError("lead_export_failed", err, map[string]interface{}{"user_id": userID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export leads")
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=leads.csv")
	return c.SendString(utils.BuildLeadsCSV(leads))
}

// parseLeadFilters reads the optional filter dimensions off the query
// string, dropping empty values.
func parseLeadFilters(c *fiber.Ctx) (*store.LeadFilters, error) {
	filters := &store.LeadFilters{
		PropertyType:  c.Query("propertyType"),
		Status:        c.Query("status"),
		Priority:      c.Query("priority"),
		Source:        c.Query("source"),
		BHKType:       c.Query("bhkType"),
		Location:      c.Query("location"),
		SortBy:        c.Query("sortBy"),
		SortDirection: c.Query("sortDirection"),
	}

	if v := c.Query("minBudget"); v != "" {
		n := c.QueryInt("minBudget")
		filters.MinBudget = &n
	}
	if v := c.Query("maxBudget"); v != "" {
		n := c.QueryInt("maxBudget")
		filters.MaxBudget = &n
	}

	if v := c.Query("dateFrom"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, errors.New("Invalid dateFrom")
		}
		filters.DateFrom = &t
	}
	if v := c.Query("dateTo"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return nil, errors.New("Invalid dateTo")
		}
		filters.DateTo = &t
	}

	return filters, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// sliceLeadsPage pages an already-searched result set. Out-of-range pages
// yield an empty page.
func sliceLeadsPage(leads []store.LeadWithMeta, page, limit int) *store.PaginatedLeads {
	total := len(leads)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	end := start + limit
	if start < 0 || start > total {
		start, end = 0, 0
	} else if end > total {
		end = total
	}

	return &store.PaginatedLeads{
		Leads:      leads[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
