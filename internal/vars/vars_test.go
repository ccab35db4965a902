package vars

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCompileAndEvaluate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://Example.com:8080/purge/foo.txt?v=2&name=bar", nil)
	req.Header.Set("X-Tenant", "acme")
	req = withParams(req, "name", "foo.txt", "*", "a/b.txt")

	tests := []struct {
		expr string
		want string
	}{
		{"/static/file.txt", "/static/file.txt"},
		{"$uri", "/purge/foo.txt"},
		{"/uploads/$param_name", "/uploads/foo.txt"},
		{"/uploads/${param_name}.bak", "/uploads/foo.txt.bak"},
		{"/w/${param_*}", "/w/a/b.txt"},
		{"/$host/$arg_name", "/example.com/bar"},
		{"$args", "v=2&name=bar"},
		{"/t/$http_x_tenant", "/t/acme"},
		{"/$request_method", "/GET"},
		{"cost$$5", "cost$5"},
		{"/$arg_missing", "/"},
		{"$scheme", "http"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ev, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := ev(req)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCompileRejectsMalformed(t *testing.T) {
	for _, expr := range []string{"$nope", "/a/${uri", "/a/$", "${}", "$http_", "/${param_}"} {
		if _, err := Compile(expr); err == nil {
			t.Fatalf("expected compile error for %q", expr)
		}
	}
}

func TestUndefinedRouteParamFails(t *testing.T) {
	ev, err := Compile("/uploads/$param_name")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, err := ev(req); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam without route context, got %v", err)
	}
	req = withParams(req, "other", "1")
	if _, err := ev(req); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam for missing key, got %v", err)
	}
}

func TestHasVariables(t *testing.T) {
	cases := map[string]bool{
		"/var/www":      false,
		"/srv/$host":    true,
		"/price$$":      false,
		"/a/${uri}/b":   true,
		"":              false,
		"$$$request_id": true,
	}
	for in, want := range cases {
		if got := HasVariables(in); got != want {
			t.Fatalf("HasVariables(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStatic(t *testing.T) {
	got, err := Static("/x")(nil)
	if err != nil || got != "/x" {
		t.Fatalf("unexpected static result %q, %v", got, err)
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Example.COM", "example.com"},
		{"example.com:8080", "example.com"},
		{"example.com.", "example.com"},
		{"[::1]:443", "[::1]"},
		{"[::1]", "[::1]"},
	}
	for _, tt := range tests {
		got, err := Host(tt.raw)
		if err != nil {
			t.Fatalf("%q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.raw, tt.want, got)
		}
	}

	for _, raw := range []string{"", ".", "..", "..:80", ".example.com", "a..b", "a/b", `a\b`, "a\x00b"} {
		if _, err := Host(raw); !errors.Is(err, ErrInvalidHost) {
			t.Fatalf("%q: expected ErrInvalidHost, got %v", raw, err)
		}
	}
}

func TestHostVariableRejectsDotDot(t *testing.T) {
	ev, err := Compile("/srv/sites/$host")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/cache/victim.txt", nil)
	req.Host = ".."
	if got, err := ev(req); !errors.Is(err, ErrInvalidHost) {
		t.Fatalf("expected ErrInvalidHost, got %q, %v", got, err)
	}
}

func TestLiteral(t *testing.T) {
	got, err := Literal("/var/www/cost$$5")
	if err != nil {
		t.Fatalf("literal: %v", err)
	}
	if got != "/var/www/cost$5" {
		t.Fatalf("unexpected literal %q", got)
	}
	if _, err := Literal("/srv/$host"); err == nil {
		t.Fatalf("expected error for a string with variables")
	}
	if _, err := Literal("/srv/$"); err == nil {
		t.Fatalf("expected error for a trailing $")
	}
}
