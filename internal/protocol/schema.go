package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://huntforge.ai/schemas/"

var ErrUnknownType = errors.New("unknown message type")

// Validator checks raw messages against the embedded JSON schema of their type.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// DefaultValidator compiles the embedded schemas once per process.
func DefaultValidator() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for _, typ := range []string{
		TypeHello, TypeQueryHints, TypeQueryNames, TypeSetPosition, TypeSetDirection, TypeMoveTo,
		TypeWelcome, TypeHints, TypeNames, TypeState, TypeError,
	} {
		s, err := c.Compile(schemaBaseURL + SchemaFile(typ))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", typ, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// SchemaFile names the embedded schema for a message type, e.g. "query_hints.schema.json".
func SchemaFile(typ string) string {
	return strings.ToLower(typ) + ".schema.json"
}

// Validate checks raw against the schema of typ. Types without a schema
// return ErrUnknownType.
func (v *Validator) Validate(typ string, raw []byte) error {
	s, ok := v.byType[typ]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

// ValidateValue marshals v and validates it against the schema of typ.
func (v *Validator) ValidateValue(typ string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return v.Validate(typ, b)
}
