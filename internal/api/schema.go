package api

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdghn/youapp-be-test/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaValidator checks request bodies against the embedded JSON schemas.
// Schemas are compiled once, on first use.
type SchemaValidator struct {
	once    sync.Once
	schemas map[string]*gojsonschema.Schema
	err     error
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

func (v *SchemaValidator) load() {
	files, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		v.err = fmt.Errorf("list schemas: %w", err)
		return
	}
	v.schemas = make(map[string]*gojsonschema.Schema, len(files))
	for _, f := range files {
		data, err := schemaFS.ReadFile(f)
		if err != nil {
			v.err = fmt.Errorf("read schema %s: %w", f, err)
			return
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			v.err = fmt.Errorf("compile schema %s: %w", f, err)
			return
		}
		v.schemas[strings.TrimSuffix(path.Base(f), ".json")] = schema
	}
}

// Validate checks body against the schema called name.
func (v *SchemaValidator) Validate(name string, body []byte) error {
	v.once.Do(v.load)
	if v.err != nil {
		return apperr.Internal(v.err, "load schemas")
	}
	schema, ok := v.schemas[name]
	if !ok {
		return apperr.Internal(fmt.Errorf("no schema %q", name), "validate body")
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Validation("request body must be a JSON object")
	}
	if !res.Valid() {
		first := res.Errors()[0]
		if first.Field() == "(root)" {
			return apperr.Validation("%s", first.Description())
		}
		return apperr.Validation("%s: %s", first.Field(), first.Description())
	}
	return nil
}
