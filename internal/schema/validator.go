// Package schema validates the pipeline's structured intermediate objects
// against a fixed set of JSON Schema documents before they leave the
// planning stage. A validation failure is a programming-error-class fault:
// fatal to the turn, never retried.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harunnryd/musubi/internal/errors"
)

//go:embed schemas/*.schema.json
var embedded embed.FS

// Schema document names accepted by Validate.
const (
	IntentV1 = "intent.v1.schema.json"
	PlanV1   = "plan.v1.schema.json"
)

var names = []string{IntentV1, PlanV1}

// Validator holds the compiled schema set for the process lifetime.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// Load compiles the schema set. When dir is non-empty the documents are read
// from it (by the same file names); otherwise the embedded copies are used.
func Load(dir string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for _, name := range names {
		data, err := readDocument(dir, name)
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		sch, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		compiled[name] = sch
	}
	return &Validator{compiled: compiled}, nil
}

func readDocument(dir, name string) ([]byte, error) {
	if dir == "" {
		data, err := embedded.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded schema %s: %w", name, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("schema dir %s: %w", dir, err)
	}
	return data, nil
}

// Validate runs full structural validation of obj against the named schema.
// The returned error wraps errors.ErrSchemaValidation and carries up to 5
// field-path violations.
func (v *Validator) Validate(name string, obj any) error {
	sch, ok := v.compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q: %w", name, errors.ErrSchemaValidation)
	}

	doc, err := normalize(obj)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", name, err, errors.ErrSchemaValidation)
	}

	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if stderrors.As(err, &ve) {
			return fmt.Errorf("%s: %s: %w", name, summarize(ve), errors.ErrSchemaValidation)
		}
		return fmt.Errorf("%s: %v: %w", name, err, errors.ErrSchemaValidation)
	}
	return nil
}

// normalize round-trips obj through JSON so structs validate the same as the
// wire representation.
func normalize(obj any) (any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func summarize(ve *jsonschema.ValidationError) string {
	out := ve.BasicOutput()
	parts := make([]string, 0, 5)
	for _, unit := range out.Errors {
		if unit.Error == "" || strings.HasPrefix(unit.Error, "doesn't validate with") {
			continue
		}
		loc := unit.InstanceLocation
		if loc == "" {
			loc = "$"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", loc, unit.Error))
		if len(parts) == 5 {
			break
		}
	}
	if len(parts) == 0 {
		return ve.Message
	}
	return strings.Join(parts, "; ")
}
