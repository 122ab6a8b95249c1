package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/config"
	"github.com/mmynk/workaholic/internal/groupstore"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/service"
	"github.com/mmynk/workaholic/internal/storage/memory"
)

var discard = slog.New(slog.DiscardHandler)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	docs := memory.New()
	server := httptest.NewServer(service.NewRouter(service.Deps{
		Store:         docs,
		Authenticator: auth.NewPasswordAuthenticator(auth.NewDocUserStorage(docs)).WithCost(bcrypt.MinCost),
		JWT:           auth.NewJWTManager("test-secret-0123456789", time.Hour),
		Logger:        discard,
		Stop:          make(chan struct{}),
	}))
	t.Cleanup(func() {
		docs.Close()
		server.CloseClientConnections()
		server.Close()
	})
	return server
}

// invoke runs one CLI invocation against server, keeping the session in
// tokenFile between invocations.
func invoke(t *testing.T, server *httptest.Server, tokenFile string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	a, err := newApp(&config.ClientConfig{ServerURL: server.URL, TokenFile: tokenFile}, server.Client(), discard, &out)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()
	a.in = strings.NewReader("")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = a.execute(ctx, args)
	return out.String(), err
}

func mustInvoke(t *testing.T, server *httptest.Server, tokenFile string, args ...string) string {
	t.Helper()
	out, err := invoke(t, server, tokenFile, args...)
	if err != nil {
		t.Fatalf("workaholic %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLI_GroupWorkflow(t *testing.T) {
	server := setupTestServer(t)
	dir := t.TempDir()
	anna := filepath.Join(dir, "anna", "token")
	bo := filepath.Join(dir, "bo", "token")

	if _, err := invoke(t, server, anna, "whoami"); err == nil {
		t.Fatal("whoami before login should fail")
	}

	out := mustInvoke(t, server, anna, "register", "-email", "anna@example.com", "-password", "hemligt1", "-name", "Anna")
	if !strings.Contains(out, "Signed in as Anna") {
		t.Errorf("register output = %q", out)
	}
	info, err := os.Stat(anna)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %v, want 0600", perm)
	}

	if out := mustInvoke(t, server, anna, "whoami"); !strings.Contains(out, "anna@example.com") {
		t.Errorf("whoami output = %q", out)
	}

	out = mustInvoke(t, server, anna, "create", "-code", "AB12CD34", "villa", "ek")
	if !strings.Contains(out, "Created Villa ek") {
		t.Errorf("create output = %q", out)
	}

	mustInvoke(t, server, anna, "add-product", "-group", "AB12CD34", "-name", "uttag", "-enumber", "18 123",
		"-price", "100", "-markup", "25", "-vat", "25", "-qty", "2")
	mustInvoke(t, server, anna, "add-cost", "-group", "ab12cd34", "-info", "montering",
		"-hours", "8", "-rate", "500", "-travel", "750", "-date", "2025-03-14")

	out = mustInvoke(t, server, anna, "settle", "AB12CD34")
	for _, want := range []string{"312.5 kr", "4750 kr", "5062.5 kr", "profit"} {
		if !strings.Contains(out, want) {
			t.Errorf("settle output missing %q:\n%s", want, out)
		}
	}

	mustInvoke(t, server, bo, "register", "-email", "bo@example.com", "-password", "hemligt2")
	if out := mustInvoke(t, server, bo, "import", "ab12cd34"); !strings.Contains(out, "Joined Villa ek") {
		t.Errorf("import output = %q", out)
	}

	if out := mustInvoke(t, server, anna, "badges"); !strings.Contains(out, "Notifications: 1") {
		t.Errorf("badges output = %q", out)
	}
	mustInvoke(t, server, anna, "mark-read")
	if out := mustInvoke(t, server, anna, "badges"); !strings.Contains(out, "Notifications: 0") {
		t.Errorf("badges after mark-read = %q", out)
	}

	if out := mustInvoke(t, server, bo, "groups"); !strings.Contains(out, "Villa ek") {
		t.Errorf("bo's groups = %q", out)
	}
	if _, err := invoke(t, server, bo, "delete", "AB12CD34"); !errors.Is(err, groupstore.ErrNotOwner) {
		t.Errorf("delete by member: err = %v, want ErrNotOwner", err)
	}

	mustInvoke(t, server, anna, "delete", "AB12CD34")
	if out := mustInvoke(t, server, anna, "groups"); !strings.Contains(out, "No groups") {
		t.Errorf("groups after delete = %q", out)
	}

	mustInvoke(t, server, anna, "logout")
	if _, err := os.Stat(anna); !os.IsNotExist(err) {
		t.Errorf("token file should be removed on logout, stat err = %v", err)
	}
}

func TestCLI_LineItems(t *testing.T) {
	server := setupTestServer(t)
	token := filepath.Join(t.TempDir(), "token")

	mustInvoke(t, server, token, "register", "-email", "anna@example.com", "-password", "hemligt1")
	mustInvoke(t, server, token, "create", "-code", "AB12CD34", "villa ek")
	if out := mustInvoke(t, server, token, "products", "AB12CD34"); !strings.Contains(out, "No products in Villa ek") {
		t.Errorf("products on an empty group = %q", out)
	}

	mustInvoke(t, server, token, "add-product", "-group", "AB12CD34", "-name", "uttag", "-enumber", "18123",
		"-price", "100", "-markup", "25", "-vat", "25", "-qty", "2")
	mustInvoke(t, server, token, "add-product", "-group", "AB12CD34", "-name", "kabel", "-enumber", "1",
		"-price", "40", "-vat", "25")
	mustInvoke(t, server, token, "add-cost", "-group", "AB12CD34", "-info", "montering",
		"-hours", "8", "-rate", "500", "-travel", "750", "-date", "2025-03-14")
	mustInvoke(t, server, token, "add-cost", "-group", "AB12CD34", "-info", "besiktning",
		"-hours", "2", "-rate", "600", "-date", "2025-03-15")

	steps := []struct {
		args []string
		want []string
	}{
		{args: []string{"products", "AB12CD34"}, want: []string{"Uttag", "Kabel", "312.5 kr", "Purchase: 240 kr  Total: 362.5 kr"}},
		{args: []string{"edit-product", "-group", "AB12CD34", "-index", "1", "-qty", "4"}, want: []string{"Updated 4 × Uttag"}},
		{args: []string{"products", "AB12CD34"}, want: []string{"625 kr", "Purchase: 440 kr  Total: 675 kr"}},
		{args: []string{"rm-product", "AB12CD34", "2"}, want: []string{"Removed Kabel from Villa ek"}},
		{args: []string{"products", "AB12CD34"}, want: []string{"Purchase: 400 kr  Total: 625 kr"}},

		{args: []string{"costs", "AB12CD34"}, want: []string{"Montering", "Besiktning", "Hours: 10  Labor: 5200 kr  Travel: 750 kr"}},
		{args: []string{"edit-cost", "-group", "AB12CD34", "-index", "2", "-hours", "3"}, want: []string{"Updated Besiktning on 2025-03-15"}},
		{args: []string{"costs", "AB12CD34"}, want: []string{"Hours: 11  Labor: 5800 kr  Travel: 750 kr"}},
		{args: []string{"rm-cost", "AB12CD34", "1"}, want: []string{"Removed Montering from Villa ek"}},
		{args: []string{"costs", "AB12CD34"}, want: []string{"Hours: 3  Labor: 1800 kr  Travel: 0 kr"}},
	}
	for _, step := range steps {
		out := mustInvoke(t, server, token, step.args...)
		for _, want := range step.want {
			if !strings.Contains(out, want) {
				t.Errorf("workaholic %s: output missing %q:\n%s", strings.Join(step.args, " "), want, out)
			}
		}
	}

	if out := mustInvoke(t, server, token, "settle", "AB12CD34"); !strings.Contains(out, "2425 kr") {
		t.Errorf("settle after edits should total 625 + 1800 kr:\n%s", out)
	}

	for _, args := range [][]string{
		{"rm-product", "AB12CD34", "2"},
		{"rm-cost", "AB12CD34", "0"},
		{"edit-product", "-group", "AB12CD34", "-index", "5", "-qty", "1"},
		{"edit-cost", "-group", "AB12CD34", "-hours", "1"},
	} {
		if _, err := invoke(t, server, token, args...); err == nil || !strings.Contains(err.Error(), "out of range") {
			t.Errorf("workaholic %s: err = %v, want out of range", strings.Join(args, " "), err)
		}
	}
	if _, err := invoke(t, server, token, "rm-cost", "AB12CD34", "first"); err == nil || !strings.Contains(err.Error(), "bad index") {
		t.Errorf("rm-cost with a word for an index: err = %v", err)
	}
	if _, err := invoke(t, server, token, "edit-product", "-group", "AB12CD34", "-index", "1", "-name", " "); !errors.Is(err, models.ErrValidation) {
		t.Errorf("blanking a product name: err = %v, want ErrValidation", err)
	}
	if _, err := invoke(t, server, token, "edit-cost", "-group", "AB12CD34", "-index", "1", "-date", "15/3"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad cost date: err = %v, want ErrValidation", err)
	}
	if out := mustInvoke(t, server, token, "costs", "AB12CD34"); !strings.Contains(out, "2025-03-15") {
		t.Errorf("a rejected edit must leave the entry alone:\n%s", out)
	}
}

func TestCLI_Profile(t *testing.T) {
	server := setupTestServer(t)
	token := filepath.Join(t.TempDir(), "token")

	mustInvoke(t, server, token, "register", "-email", "anna@example.com", "-password", "hemligt1")
	if out := mustInvoke(t, server, token, "profile", "-name", "Anna E"); !strings.Contains(out, "Anna E") {
		t.Errorf("profile output = %q", out)
	}
	if out := mustInvoke(t, server, token, "whoami"); !strings.Contains(out, "Anna E") {
		t.Errorf("whoami after profile = %q", out)
	}

	mustInvoke(t, server, token, "passwd", "-current", "hemligt1", "-new", "hemligt3")
	mustInvoke(t, server, token, "logout")
	if _, err := invoke(t, server, token, "login", "-email", "anna@example.com", "-password", "hemligt1"); err == nil {
		t.Error("login with the old password should fail")
	}
	mustInvoke(t, server, token, "login", "-email", "anna@example.com", "-password", "hemligt3")
}

func TestCLI_StaleTokenIsForgotten(t *testing.T) {
	server := setupTestServer(t)
	token := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(token, []byte("not-a-jwt\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := invoke(t, server, token, "groups"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Errorf("groups with stale token: err = %v, want not signed in", err)
	}
	if _, err := os.Stat(token); !os.IsNotExist(err) {
		t.Errorf("stale token should be removed, stat err = %v", err)
	}
}

func TestCLI_Usage(t *testing.T) {
	server := setupTestServer(t)
	token := filepath.Join(t.TempDir(), "token")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no command", args: nil, wantErr: "help requested"},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: `unknown command "frobnicate"`},
		{name: "unknown flag", args: []string{"login", "-bogus"}, wantErr: "flag provided but not defined"},
		{name: "login without password", args: []string{"login", "-email", "a@example.com"}, wantErr: "no password given"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, server, token, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
