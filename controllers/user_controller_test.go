package controller_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"propleads/models"
)

func TestCreateUser(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/users",
		`{"email":"agent@example.com","name":"Asha Rao"}`))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var user models.User
	decodeBody(t, resp, &user)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "agent@example.com", user.Email)
	require.Equal(t, "Asha Rao", user.Name)
	require.False(t, user.CreatedAt.IsZero())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{"email":"agent@example.com","name":"Asha Rao"}`
	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/users", body))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(fiber.MethodPost, "/api/users", body))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var errBody struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &errBody)
	require.Equal(t, "User with this email already exists", errBody.Error)
}

func TestCreateUser_Validation(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"name":"Asha Rao"}`},
		{"malformed email", `{"email":"not-an-email","name":"Asha Rao"}`},
		{"missing name", `{"email":"agent@example.com"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/users", tc.body))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var errBody struct {
				Error   string   `json:"error"`
				Details []string `json:"details"`
			}
			decodeBody(t, resp, &errBody)
			require.Equal(t, "Validation failed", errBody.Error)
			require.NotEmpty(t, errBody.Details)
		})
	}
}

func TestGetUser(t *testing.T) {
	app, st := newTestApp(t)
	user := newTestUser(t, st, "agent@example.com")

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/users/"+user.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got models.User
	decodeBody(t, resp, &got)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, user.Email, got.Email)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/users/missing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
