// Package vars compiles configuration strings with request variables such as
// "/uploads/$param_name" or "/srv/${host}" into evaluators.
package vars

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Evaluator turns a request into a string.
type Evaluator func(r *http.Request) (string, error)

// Static returns an evaluator that always yields s.
func Static(s string) Evaluator {
	return func(*http.Request) (string, error) { return s, nil }
}

var ErrUnknownParam = errors.New("route parameter not defined")

// ErrInvalidHost is returned by $host for a Host header that could name
// something other than a single host, such as ".." or "a/b".
var ErrInvalidHost = errors.New("invalid host")

type part struct {
	literal string
	lookup  func(r *http.Request) (string, error)
}

var simple = map[string]func(r *http.Request) string{
	"uri":            func(r *http.Request) string { return r.URL.Path },
	"request_uri":    func(r *http.Request) string { return r.RequestURI },
	"args":           func(r *http.Request) string { return r.URL.RawQuery },
	"request_method": func(r *http.Request) string { return r.Method },
	"remote_addr":    func(r *http.Request) string { return r.RemoteAddr },
	"scheme":         schemeOf,
	"request_id":     func(r *http.Request) string { return chimw.GetReqID(r.Context()) },
}

// HasVariables reports whether s references at least one variable.
func HasVariables(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '$' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			i++
			continue
		}
		return true
	}
	return false
}

// Literal returns s with "$$" escapes undone. It fails if s references a
// variable.
func Literal(s string) (string, error) {
	parts, err := parse(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range parts {
		if p.lookup != nil {
			return "", fmt.Errorf("%q: not a literal", s)
		}
		b.WriteString(p.literal)
	}
	return b.String(), nil
}

// Compile parses s. Unknown variable names and malformed ${...} references
// are reported here so they surface at configuration load.
func Compile(s string) (Evaluator, error) {
	parts, err := parse(s)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return Static(""), nil
	}
	if len(parts) == 1 && parts[0].lookup == nil {
		return Static(parts[0].literal), nil
	}
	return func(r *http.Request) (string, error) {
		var b strings.Builder
		for _, p := range parts {
			if p.lookup == nil {
				b.WriteString(p.literal)
				continue
			}
			v, err := p.lookup(r)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
		return b.String(), nil
	}, nil
}

func parse(s string) ([]part, error) {
	var parts []part
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' {
			lit.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("%q: trailing $", s)
		}
		if s[i+1] == '$' {
			lit.WriteByte('$')
			i++
			continue
		}

		var name string
		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%q: missing closing }", s)
			}
			name = s[i+2 : i+2+end]
			i += 2 + end
		} else {
			j := i + 1
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			name = s[i+1 : j]
			i = j - 1
		}
		if name == "" {
			return nil, fmt.Errorf("%q: empty variable name", s)
		}
		lookup, err := lookupFor(name)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		flush()
		parts = append(parts, part{lookup: lookup})
	}
	flush()
	return parts, nil
}

func lookupFor(name string) (func(r *http.Request) (string, error), error) {
	if fn, ok := simple[name]; ok {
		return func(r *http.Request) (string, error) { return fn(r), nil }, nil
	}
	switch {
	case name == "host":
		return func(r *http.Request) (string, error) { return Host(r.Host) }, nil
	case strings.HasPrefix(name, "arg_") && len(name) > len("arg_"):
		key := name[len("arg_"):]
		return func(r *http.Request) (string, error) {
			return r.URL.Query().Get(key), nil
		}, nil
	case strings.HasPrefix(name, "http_") && len(name) > len("http_"):
		header := strings.ReplaceAll(name[len("http_"):], "_", "-")
		return func(r *http.Request) (string, error) {
			return r.Header.Get(header), nil
		}, nil
	case strings.HasPrefix(name, "param_") && len(name) > len("param_"):
		key := name[len("param_"):]
		return func(r *http.Request) (string, error) {
			return routeParam(r, key)
		}, nil
	}
	return nil, fmt.Errorf("unknown variable %q", name)
}

func routeParam(r *http.Request, key string) (string, error) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	for i, k := range rctx.URLParams.Keys {
		if k == key {
			return rctx.URLParams.Values[i], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownParam, key)
}

// Host normalizes a Host header value the way $host reports it: port and a
// single trailing dot removed, lowercased. Empty hosts, hosts starting with a
// dot or containing "..", "/", "\\" or NUL are rejected with ErrInvalidHost.
func Host(raw string) (string, error) {
	host := raw
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || host[0] == '.' || strings.Contains(host, "..") || strings.ContainsAny(host, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, raw)
	}
	return strings.ToLower(host), nil
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
