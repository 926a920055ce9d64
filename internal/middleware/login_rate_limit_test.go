package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/tabapp/tabapp/internal/logging"
)

func setupDirectoryApp(t *testing.T, limit int) (*fiber.App, *HTTPMetrics, *bytes.Buffer) {
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

	metrics, err := NewHTTPMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(metrics.Handler())
	app.Use(Audit(logging.NewWithWriter(&logs, "directory", "info")))
	app.Get("/users", LoginRateLimit(cache, limit, metrics), func(c *fiber.Ctx) error {
		return c.JSON([]string{})
	})
	return app, metrics, &logs
}

func get(t *testing.T, app *fiber.App, target string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitPerLogin(t *testing.T) {
	app, metrics, _ := setupDirectoryApp(t, 2)

	for i := 0; i < 2; i++ {
		if status := get(t, app, "/users?login=anna&pass=x"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, status)
		}
	}
	if status := get(t, app, "/users?login=ANNA&pass=x"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if status := get(t, app, "/users?login=bruno&pass=x"); status != fiber.StatusOK {
		t.Fatalf("other logins must not be limited, got %d", status)
	}
	if status := get(t, app, "/users"); status != fiber.StatusOK {
		t.Fatalf("listing must not be limited, got %d", status)
	}
	if got := testutil.ToFloat64(metrics.rateLimited); got != 1 {
		t.Fatalf("expected one rate limited request, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues(fiber.MethodGet, "/users", "429")); got != 1 {
		t.Fatalf("expected one 429 observation, got %v", got)
	}
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Get("/users", LoginRateLimit(nil, 1, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		if status := get(t, app, "/users?login=anna"); status != fiber.StatusOK {
			t.Fatalf("expected limiter to be a no-op, got %d", status)
		}
	}
}

func TestAuditNeverLogsPassword(t *testing.T) {
	app, _, logs := setupDirectoryApp(t, 5)

	req := httptest.NewRequest(fiber.MethodGet, "/users?login=anna&pass=hunter2", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}

	out := logs.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked into logs: %s", out)
	}
	if !strings.Contains(out, `"login":"anna"`) || !strings.Contains(out, `"request_id":"req-1"`) {
		t.Fatalf("expected login and request id in audit log, got %s", out)
	}
}
