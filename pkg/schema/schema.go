// Package schema validates document content against registered JSON Schemas.
// Schemas are compiled once and cached per document type; validation failure
// is reported before any signing or hashing happens so malformed documents
// never enter the version chain.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrSchemaNotFound: no schema registered for the document type.
	ErrSchemaNotFound = errors.New("no schema registered for document type")

	// ErrSchemaInvalid: the document failed schema validation.
	ErrSchemaInvalid = errors.New("document failed schema validation")
)

const resourceBase = "https://anchor.schemas.local/"

// Registry holds compiled schemas keyed by document type. Safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{compiled: make(map[string]*jsonschema.Schema)}
}

// Register compiles the schema source and associates it with docType,
// replacing any earlier registration.
func (r *Registry) Register(docType, source string) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := resourceBase + docType + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return fmt.Errorf("schema %q load failed: %w", docType, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("schema %q compile failed: %w", docType, err)
	}

	r.mu.Lock()
	r.compiled[docType] = compiled
	r.mu.Unlock()
	return nil
}

// LoadDir registers every *.schema.json file in dir. The document type is
// the filename with the suffix stripped, so task.schema.json registers "task".
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("schema dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".schema.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("schema read %q: %w", name, err)
		}
		docType := strings.TrimSuffix(name, ".schema.json")
		if err := r.Register(docType, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a schema is registered for docType.
func (r *Registry) Has(docType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.compiled[docType]
	return ok
}

// Validate checks content against the schema registered for docType.
// Unregistered types fail with ErrSchemaNotFound; callers that treat
// schemas as optional check Has first.
func (r *Registry) Validate(docType string, content any) error {
	r.mu.RLock()
	compiled, ok := r.compiled[docType]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrSchemaNotFound, docType)
	}
	if err := compiled.Validate(content); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}
