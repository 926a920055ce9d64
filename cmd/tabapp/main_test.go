package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabapp/tabapp/internal/directory"
	"github.com/tabapp/tabapp/internal/session"
)

func setupEnv(t *testing.T) {
	t.Helper()
	svc := directory.NewService(directory.NewMemoryRepository(), nil, directory.WithBcryptCost(bcrypt.MinCost))
	if _, err := svc.Register(context.Background(), directory.RegisterInput{Login: "anna", Password: "secret", Note: "qa"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	h := directory.NewHandler(svc)
	app := fiber.New()
	app.Get("/users", h.Users)
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)

	t.Setenv("DIRECTORY_URL", srv.URL)
	t.Setenv("SECURE_STORE", "file")
	t.Setenv("SECURE_STORE_PATH", t.TempDir())
	t.Setenv("SECURE_STORE_SECRET", "test-secret")
	t.Setenv("BIOMETRIC_KINDS", "fingerprint")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginThenBiometricReentry(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "login", "--login", "anna", "--password", "secret")
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	if !strings.Contains(out, "phase: authenticated") || !strings.Contains(out, "display name: anna") {
		t.Fatalf("unexpected login output:\n%s", out)
	}

	out, err = execute(t, "", "whoami")
	if err != nil || !strings.Contains(out, "login: anna") {
		t.Fatalf("whoami: %v\n%s", err, out)
	}

	out, err = execute(t, "y\n", "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "phase: authenticated") {
		t.Fatalf("expected biometric re-entry, got:\n%s", out)
	}

	out, err = execute(t, "n\n", "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "phase: failed") || !strings.Contains(out, "display name: anna") {
		t.Fatalf("expected silent failure keeping display name, got:\n%s", out)
	}
}

func TestLoginRejectsShortInput(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "login", "--login", "ab", "--password", "xx")
	if !errors.Is(err, session.ErrSubmitDisabled) {
		t.Fatalf("expected ErrSubmitDisabled, got %v", err)
	}
	out, err := execute(t, "", "whoami")
	if err != nil || !strings.Contains(out, "nobody") {
		t.Fatalf("expected nothing persisted: %v\n%s", err, out)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "wrong\n", "login", "--login", "anna", "--password-stdin")
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !strings.Contains(out, "failure: invalid_credentials") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestUnlockWithoutBiometrics(t *testing.T) {
	setupEnv(t)
	t.Setenv("BIOMETRIC_KINDS", "")

	out, err := execute(t, "", "unlock")
	var alert *session.AlertError
	if !errors.As(err, &alert) || alert.Reason != session.BiometricUnavailable {
		t.Fatalf("expected unavailable alert, got %v", err)
	}
	if !strings.Contains(out, "alert:") {
		t.Fatalf("expected alert line, got:\n%s", out)
	}
}

func TestGuestAndUsers(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "guest", "--metrics")
	if err != nil || !strings.Contains(out, "phase: guest") {
		t.Fatalf("guest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "tabapp_session_transitions_total{to=guest} 1") {
		t.Fatalf("expected metrics dump, got:\n%s", out)
	}

	out, err = execute(t, "", "users")
	if err != nil || !strings.Contains(out, "anna") || !strings.Contains(out, "qa") {
		t.Fatalf("users: %v\n%s", err, out)
	}
}

func TestCapabilityFromKinds(t *testing.T) {
	capability, err := capabilityFromKinds([]string{"fingerprint", "iris"})
	if err != nil || !capability.Available() || len(capability.Kinds) != 2 {
		t.Fatalf("unexpected capability %+v err=%v", capability, err)
	}
	if _, err := capabilityFromKinds([]string{"retina-scan"}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if capability, _ := capabilityFromKinds(nil); capability.Available() {
		t.Fatalf("expected no capability for empty list")
	}
}

func TestOfflineDirectory(t *testing.T) {
	setupEnv(t)
	seed := t.TempDir() + "/users.yaml"
	if err := os.WriteFile(seed, []byte("users:\n  - login: bruno\n    pass: hunter2\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	out, err := execute(t, "", "--offline-seed", seed, "login", "-l", "bruno", "-p", "hunter2")
	if err != nil || !strings.Contains(out, "login: bruno") {
		t.Fatalf("offline login: %v\n%s", err, out)
	}
}
