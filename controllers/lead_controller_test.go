package controller_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"propleads/config"
	"propleads/models"
	"propleads/routes"
	"propleads/store"
)

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	require.NoError(t, config.LoadConfig())

	st := store.NewMemoryStore()
	log := logrus.New()
	log.SetOutput(io.Discard)

	app := fiber.New()
	routes.SetupRoutes(app, st, log)
	return app, st
}

func newTestUser(t *testing.T, st *store.MemoryStore, email string) *models.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), email, "Test Agent")
	require.NoError(t, err)
	return user
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func createLeadBody(userID string) string {
	return fmt.Sprintf(`{
		"userId": %q,
		"name": "Asha Rao",
		"email": "asha@x.com",
		"phone": "9998887777",
		"propertyType": "residential",
		"bhkType": "2bhk",
		"minBudget": 3000000,
		"maxBudget": 5000000
	}`, userID)
}

func TestCreateLead(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", createLeadBody(user.ID)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var lead models.Lead
	decodeBody(t, resp, &lead)
	require.NotEmpty(t, lead.ID)
	require.Equal(t, models.StatusNew, lead.Status)
	require.Equal(t, models.PriorityMedium, lead.Priority)
	require.Equal(t, models.SourceWebsite, lead.Source)

	// Creation writes exactly one history entry.
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/"+lead.ID+"/history?userId="+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var history []models.LeadHistory
	decodeBody(t, resp, &history)
	require.Len(t, history, 1)
	require.Equal(t, models.ActionCreated, history[0].Action)
}

func TestCreateLead_MissingUserID(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{"name":"Asha Rao","email":"asha@x.com","phone":"9998887777",
		"propertyType":"land","minBudget":1,"maxBudget":2}`
	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", body))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errBody struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &errBody)
	require.Equal(t, "User ID is required", errBody.Error)
}

func TestCreateLead_ValidationFailures(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	cases := []struct {
		name   string
		body   string
		detail string
	}{
		{
			name: "max budget below min budget",
			body: fmt.Sprintf(`{"userId":%q,"name":"A B","email":"a@x.com","phone":"9998887777",
				"propertyType":"land","minBudget":500,"maxBudget":100}`, user.ID),
			detail: "maxBudget must be greater than or equal to minBudget",
		},
		{
			name: "residential without bhk",
			body: fmt.Sprintf(`{"userId":%q,"name":"A B","email":"a@x.com","phone":"9998887777",
				"propertyType":"residential","minBudget":100,"maxBudget":500}`, user.ID),
			detail: "bhkType is required for residential properties",
		},
		{
			name: "bad property type",
			body: fmt.Sprintf(`{"userId":%q,"name":"A B","email":"a@x.com","phone":"9998887777",
				"propertyType":"castle","minBudget":100,"maxBudget":500}`, user.ID),
			detail: "propertyType must be one of: residential, commercial, industrial, land",
		},
		{
			name: "short phone",
			body: fmt.Sprintf(`{"userId":%q,"name":"A B","email":"a@x.com","phone":"12345",
				"propertyType":"land","minBudget":100,"maxBudget":500}`, user.ID),
			detail: "phone must be at least 10 characters",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", tc.body))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var errBody struct {
				Error   string   `json:"error"`
				Details []string `json:"details"`
			}
			decodeBody(t, resp, &errBody)
			require.Equal(t, "Validation failed", errBody.Error)
			require.Contains(t, errBody.Details, tc.detail)
		})
	}
}

func TestGetLead_OwnershipBehavesAsNotFound(t *testing.T) {
	app, st := newTestApp(t)
	owner := newTestUser(t, st, "owner@example.com")
	other := newTestUser(t, st, "other@example.com")

	lead, err := st.CreateLead(context.Background(), sampleLeadInput(), owner.ID)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/"+lead.ID+"?userId="+other.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/"+lead.ID+"?userId="+owner.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Missing userId is a 400, not a 404.
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/leads/"+lead.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateLead(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	lead, err := st.CreateLead(context.Background(), sampleLeadInput(), user.ID)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"userId":%q,"status":"contacted"}`, user.ID)
	resp, err := app.Test(jsonRequest(fiber.MethodPatch, "/api/leads/"+lead.ID, body))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated models.Lead
	decodeBody(t, resp, &updated)
	require.Equal(t, models.StatusContacted, updated.Status)

	// Unknown id reads as not found.
	resp, err = app.Test(jsonRequest(fiber.MethodPatch, "/api/leads/missing", body))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Invalid enum value in a patch is rejected.
	bad := fmt.Sprintf(`{"userId":%q,"status":"lost"}`, user.ID)
	resp, err = app.Test(jsonRequest(fiber.MethodPatch, "/api/leads/"+lead.ID, bad))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteLead(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	lead, err := st.CreateLead(context.Background(), sampleLeadInput(), user.ID)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodDelete,
		"/api/leads/"+lead.ID+"?userId="+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "Lead deleted successfully", body.Message)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/"+lead.ID+"?userId="+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodDelete,
		"/api/leads/"+lead.ID+"?userId="+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetLeads_PaginationAndSearch(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		input := sampleLeadInput()
		input.Email = fmt.Sprintf("lead%d@x.com", i)
		_, err := st.CreateLead(ctx, input, user.ID)
		require.NoError(t, err)
	}
	jane := sampleLeadInput()
	jane.Name = "Jane Doe"
	jane.Email = "Jane@Corp.com"
	_, err := st.CreateLead(ctx, jane, user.ID)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads?userId="+user.ID+"&page=2&limit=4", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var page store.PaginatedLeads
	decodeBody(t, resp, &page)
	require.Equal(t, 6, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 4, page.Limit)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Leads, 2)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads?userId="+user.ID+"&search=jane%40corp", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	decodeBody(t, resp, &page)
	require.Equal(t, 1, page.Total)
	require.Len(t, page.Leads, 1)
	require.Equal(t, "Jane Doe", page.Leads[0].Name)
	require.Equal(t, "JD", page.Leads[0].Initials)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/leads", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetLeads_ETag(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	_, err := st.CreateLead(context.Background(), sampleLeadInput(), user.ID)
	require.NoError(t, err)

	target := "/api/leads?userId=" + user.ID
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	tag := resp.Header.Get(fiber.HeaderETag)
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	req.Header.Set(fiber.HeaderIfNoneMatch, tag)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotModified, resp.StatusCode)
}

func TestGetLeadStats(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		input := sampleLeadInput()
		if i == 0 {
			input.Status = models.StatusConverted
		}
		_, err := st.CreateLead(ctx, input, user.ID)
		require.NoError(t, err)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/stats/"+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats store.LeadStats
	decodeBody(t, resp, &stats)
	require.Equal(t, 4, stats.TotalLeads)
	require.Equal(t, 4, stats.ActiveLeads)
	require.Equal(t, 1, stats.Conversions)
	require.InDelta(t, 25.0, stats.ConversionRate, 0.001)
}

func TestExportLeadsCSV(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	input := sampleLeadInput()
	notes := `says "call after 6pm"`
	input.Notes = &notes
	_, err := st.CreateLead(context.Background(), input, user.ID)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet,
		"/api/leads/export/csv?userId="+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get(fiber.HeaderContentType))
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(string(raw), "\n")
	require.Equal(t,
		"Name,Email,Phone,Property Type,BHK,Location,Min Budget,Max Budget,Status,Priority,Source,Notes,Created At",
		lines[0])
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], `"Asha Rao"`)
	require.Contains(t, lines[1], `"says ""call after 6pm"""`)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/leads/export/csv", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateLead_RateLimited(t *testing.T) {
	t.Setenv("RATE_LIMIT_CREATE_LEAD", "2")
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	for i := 0; i < 2; i++ {
		resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", createLeadBody(user.ID)))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", createLeadBody(user.ID)))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var errBody struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &errBody)
	require.NotEmpty(t, errBody.Error)
}

func sampleLeadInput() store.LeadInput {
	bhk := models.BHK2
	location := "Koramangala"
	return store.LeadInput{
		Name:              "Asha Rao",
		Email:             "asha@x.com",
		Phone:             "9998887777",
		PropertyType:      models.PropertyResidential,
		BHKType:           &bhk,
		PreferredLocation: &location,
		MinBudget:         3000000,
		MaxBudget:         5000000,
	}
}
