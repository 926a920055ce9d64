package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func setupHandlerApp(t *testing.T) *fiber.App {
	t.Helper()
	svc := newTestService(t)
	if _, err := svc.Register(context.Background(), RegisterInput{Login: "anna", Password: "secret", Note: "first"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	h := NewHandler(svc)
	app := fiber.New()
	app.Get("/users", h.Users)
	app.Post("/users", h.Register)
	return app
}

func decodeUsers(t *testing.T, body io.Reader) []map[string]any {
	t.Helper()
	var out []map[string]any
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestUsersLookup(t *testing.T) {
	app := setupHandlerApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/users?login=anna&pass=secret", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	users := decodeUsers(t, resp.Body)
	if len(users) != 1 || users[0]["login"] != "anna" {
		t.Fatalf("expected anna, got %+v", users)
	}
	if _, leaked := users[0]["pass"]; leaked {
		t.Fatalf("password must not be returned")
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/users?login=anna&pass=nope", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if users := decodeUsers(t, resp.Body); len(users) != 0 {
		t.Fatalf("expected empty result, got %+v", users)
	}
}

func TestUsersList(t *testing.T) {
	app := setupHandlerApp(t)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/users", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if users := decodeUsers(t, resp.Body); len(users) != 1 {
		t.Fatalf("expected one user, got %+v", users)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	app := setupHandlerApp(t)

	post := func(body string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/users", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	if got := post(`{"login":"bartek","pass":"haslo"}`); got != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", got)
	}
	if got := post(`{"login":"bartek","pass":"haslo"}`); got != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", got)
	}
	if got := post(`{"login":"ab","pass":"x"}`); got != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", got)
	}
}
