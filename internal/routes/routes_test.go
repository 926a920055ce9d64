package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabapp/tabapp/internal/config"
	"github.com/tabapp/tabapp/internal/logging"
)

const seedYAML = `users:
  - login: anna
    pass: secret
    note: first user
  - login: bruno
    pass: hunter2
`

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	seed := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(seed, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	app := fiber.New()
	err = Setup(app, Deps{
		Cfg:        config.Config{AppEnv: "test", LoginRateLimit: 5, SeedFile: seed},
		Cache:      cache,
		Logger:     logging.Discard(),
		Registry:   prometheus.NewRegistry(),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func getBody(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(b)
}

func TestSeededLookup(t *testing.T) {
	app := setupApp(t)

	status, body := getBody(t, app, "/users?login=anna&pass=secret")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d: %s", status, body)
	}
	var users []map[string]any
	if err := json.Unmarshal([]byte(body), &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 1 || users[0]["login"] != "anna" {
		t.Fatalf("unexpected lookup result %s", body)
	}
	if strings.Contains(body, "secret") {
		t.Fatalf("password leaked in response: %s", body)
	}

	_, body = getBody(t, app, "/api/v1/users?login=anna&pass=wrong")
	if strings.TrimSpace(body) != "[]" {
		t.Fatalf("expected empty result for wrong password, got %s", body)
	}
}

func TestRegisterThenList(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/users", strings.NewReader(`{"login":"carla","pass":"s3cret"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.StatusCode)
	}

	_, body := getBody(t, app, "/users")
	var users []map[string]any
	if err := json.Unmarshal([]byte(body), &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected seeded users plus carla, got %s", body)
	}
}

func TestHealthMetricsAndPing(t *testing.T) {
	app := setupApp(t)

	status, body := getBody(t, app, "/healthz")
	if status != fiber.StatusOK || !strings.Contains(body, `"postgres":"disabled"`) || !strings.Contains(body, `"redis":"ok"`) {
		t.Fatalf("unexpected health response %d: %s", status, body)
	}

	status, body = getBody(t, app, "/api/v1/ping")
	if status != fiber.StatusOK || !strings.Contains(body, `"request_id"`) {
		t.Fatalf("unexpected ping response %d: %s", status, body)
	}

	getBody(t, app, "/users?login=anna&pass=secret")
	_, body = getBody(t, app, "/metrics")
	if !strings.Contains(body, "tabapp_directory_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "production"}})
	if err == nil {
		t.Fatalf("expected error without database in production")
	}
}
