package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema/locations-schema.json
var locationsSchema []byte

const locationsSchemaURL = "https://nebula-panel.dev/schemas/static-delete/locations.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Location is one static_delete block: requests matching Pattern delete the
// file named by StaticDelete under Root.
type Location struct {
	Pattern      string `yaml:"pattern"`
	Root         string `yaml:"root"`
	Alias        bool   `yaml:"alias"`
	Strict       bool   `yaml:"strict"`
	StaticDelete string `yaml:"static_delete"`
}

type locationsFile struct {
	Locations []Location `yaml:"locations"`
}

func LoadLocations(path string) ([]Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	return ParseLocations(data)
}

// ParseLocations decodes a YAML locations document and validates it against
// the embedded schema before mapping it onto Location values.
func ParseLocations(data []byte) ([]Location, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var doc locationsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}

	seen := make(map[string]bool, len(doc.Locations))
	for i, loc := range doc.Locations {
		p := strings.TrimSpace(loc.Pattern)
		if seen[p] {
			return nil, fmt.Errorf("locations[%d]: duplicate pattern %q", i, p)
		}
		seen[p] = true
		doc.Locations[i].Pattern = p
	}
	return doc.Locations, nil
}

func validateDocument(raw any) error {
	if raw == nil {
		return errors.New("locations document is empty")
	}
	schema, err := getSchema()
	if err != nil {
		return err
	}
	// Round-trip through JSON so the validator sees json-typed values
	// instead of yaml's native ints.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode locations: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("decode locations: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid locations: %w", err)
	}
	return nil
}

func getSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(locationsSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(locationsSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(locationsSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}
