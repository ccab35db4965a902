// Package rootpath maps a logical filename onto a location's root directory.
package rootpath

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nebula-panel/static-delete/internal/vars"
)

// ErrAliasUnsupported is returned for locations whose root replaces the
// matched URI prefix instead of prefixing it.
var ErrAliasUnsupported = errors.New(`"alias" is not supported by static delete`)

// ErrUnsafeRoot is returned when an evaluated root contains a "." or ".."
// segment.
var ErrUnsafeRoot = errors.New("root contains a relative segment")

// Spec is a location root. It is either a static directory resolved at load
// time or a template evaluated per request.
type Spec struct {
	raw      string
	dir      string
	template vars.Evaluator
	prefix   string
	alias    bool
}

// Resolved is the outcome of mapping a filename: the root directory that was
// used and the full path built from it.
type Resolved struct {
	Root string
	Path string
}

// New builds a Spec from the configured root. Relative roots, static or
// evaluated, are taken relative to prefix.
func New(root, prefix string, alias bool) (Spec, error) {
	s := Spec{raw: root, prefix: prefix, alias: alias}
	if vars.HasVariables(root) {
		ev, err := vars.Compile(root)
		if err != nil {
			return Spec{}, fmt.Errorf("root: %w", err)
		}
		s.template = ev
		return s, nil
	}
	// A static root may still contain "$$" escapes.
	lit, err := vars.Literal(root)
	if err != nil {
		return Spec{}, fmt.Errorf("root: %w", err)
	}
	s.dir = fullName(prefix, lit)
	return s, nil
}

func (s Spec) String() string { return s.raw }

func (s Spec) Static() bool { return s.template == nil }

func (s Spec) Alias() bool { return s.alias }

// Dir returns the root directory for r, without a trailing separator.
func (s Spec) Dir(r *http.Request) (string, error) {
	if s.template == nil {
		return s.dir, nil
	}
	d, err := s.template(r)
	if err != nil {
		return "", fmt.Errorf("evaluate root %q: %w", s.raw, err)
	}
	for _, seg := range strings.Split(d, "/") {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("evaluate root %q: %w: %q", s.raw, ErrUnsafeRoot, d)
		}
	}
	return fullName(s.prefix, d), nil
}

// Resolve joins the request's root directory with filename. The filename is
// not cleaned; callers validate it before resolving.
func (s Spec) Resolve(r *http.Request, filename string) (Resolved, error) {
	if s.alias {
		return Resolved{}, ErrAliasUnsupported
	}
	dir, err := s.Dir(r)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Root: dir, Path: Join(dir, filename)}, nil
}

// Join concatenates dir and filename, inserting a single "/" only when
// filename does not already start with one.
func Join(dir, filename string) string {
	var b strings.Builder
	b.Grow(len(dir) + 1 + len(filename))
	b.WriteString(dir)
	if !strings.HasPrefix(filename, "/") {
		b.WriteByte('/')
	}
	b.WriteString(filename)
	return b.String()
}

func fullName(prefix, dir string) string {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(prefix, dir)
	}
	return strings.TrimRight(dir, "/")
}
