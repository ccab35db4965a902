package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nebula-panel/static-delete/internal/config"
	"github.com/nebula-panel/static-delete/internal/rootpath"
	"github.com/nebula-panel/static-delete/internal/vars"
)

// Location is a compiled static_delete block.
type Location struct {
	Pattern  string
	Root     rootpath.Spec
	Filename vars.Evaluator
	Strict   bool
}

func NewLocation(c config.Location, prefix string) (Location, error) {
	if err := validatePattern(c.Pattern); err != nil {
		return Location{}, fmt.Errorf("location %s: %w", c.Pattern, err)
	}
	root, err := rootpath.New(c.Root, prefix, c.Alias)
	if err != nil {
		return Location{}, fmt.Errorf("location %s: %w", c.Pattern, err)
	}
	filename, err := vars.Compile(c.StaticDelete)
	if err != nil {
		return Location{}, fmt.Errorf("location %s: static_delete: %w", c.Pattern, err)
	}
	return Location{
		Pattern:  c.Pattern,
		Root:     root,
		Filename: filename,
		Strict:   c.Strict,
	}, nil
}

func BuildLocations(cs []config.Location, prefix string) ([]Location, error) {
	out := make([]Location, 0, len(cs))
	for _, c := range cs {
		loc, err := NewLocation(c, prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// validatePattern mounts pattern on a scratch router, since chi panics on
// patterns it cannot route, such as a wildcard before the last segment.
func validatePattern(pattern string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("invalid pattern: %v", v)
		}
	}()
	chi.NewRouter().Handle(pattern, http.NotFoundHandler())
	return nil
}
