// Package schema compiles positional argument schemas into validators.
//
// A method that takes n positional arguments is described by a list of JSON
// Schema documents, one per position. Compile wraps them into a single tuple
// schema (JSON Schema 2020-12 prefixItems) whose length is fixed to n, so a
// missing or surplus argument is always rejected, and positions without a
// declared schema accept any value.
//
// "format" keywords are asserted, not just annotated.
package schema

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Schema is a JSON Schema document describing a single argument.
type Schema map[string]any

// FieldError is a single validation problem.
// Path is a JSON pointer into the argument array, for example "/0/age".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

const (
	draftURL    = "https://json-schema.org/draft/2020-12/schema"
	resourceURL = "https://apireg.invalid/args.json"
)

// Validator checks an argument array against a compiled tuple schema.
// It is safe for concurrent use.
type Validator struct {
	arity int
	doc   map[string]any
	sch   *jsonschema.Schema
}

// Tuple returns the tuple schema document for params at the given arity.
func Tuple(params []Schema, arity int) (map[string]any, error) {
	if arity < 0 {
		return nil, fmt.Errorf("schema: negative parameter count %d", arity)
	}
	if len(params) > arity {
		return nil, fmt.Errorf("schema: %d parameter schemas declared for %d parameters", len(params), arity)
	}
	doc := map[string]any{
		"$schema":  draftURL,
		"type":     "array",
		"minItems": arity,
		"maxItems": arity,
		"items":    false,
	}
	if arity > 0 {
		items := make([]any, arity)
		for i := range items {
			items[i] = true
			if i < len(params) && params[i] != nil {
				items[i] = map[string]any(params[i])
			}
		}
		doc["prefixItems"] = items
	}
	return doc, nil
}

// Compile builds a validator for params at the given arity.
// It fails if any parameter schema is not a valid JSON Schema.
func Compile(params []Schema, arity int) (*Validator, error) {
	doc, err := Tuple(params, arity)
	if err != nil {
		return nil, err
	}
	parsed, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("schema: encode: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	c.AssertFormat()
	if err := c.AddResource(resourceURL, parsed); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Validator{arity: arity, doc: doc, sch: sch}, nil
}

// Arity returns the number of arguments the validator expects.
func (v *Validator) Arity() int { return v.arity }

// Document returns the tuple schema as JSON.
func (v *Validator) Document() json.RawMessage {
	b, _ := json.Marshal(v.doc)
	return b
}

// Validate checks args and returns the problems found, ordered by argument
// position and then by location within the argument, so identical input
// always yields the same list. Messages are rendered with p; a nil printer
// renders English. A nil result means args are valid.
func (v *Validator) Validate(args []any, p *message.Printer) []FieldError {
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	if args == nil {
		args = []any{}
	}
	inst, err := normalize(args)
	if err != nil {
		return []FieldError{{Message: err.Error()}}
	}
	err = v.sch.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{{Message: err.Error()}}
	}
	var leaves []*jsonschema.ValidationError
	collect(ve, &leaves)
	// Object properties are checked in map order.
	slices.SortStableFunc(leaves, func(a, b *jsonschema.ValidationError) int {
		return compareLocation(a.InstanceLocation, b.InstanceLocation)
	})
	out := make([]FieldError, len(leaves))
	for i, l := range leaves {
		out[i] = FieldError{
			Path:    Pointer(l.InstanceLocation),
			Message: l.ErrorKind.LocalizedString(p),
		}
	}
	return out
}

func collect(e *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	if len(e.Causes) == 0 {
		*out = append(*out, e)
		return
	}
	for _, c := range e.Causes {
		collect(c, out)
	}
}

// compareLocation orders locations token by token; array indexes compare
// numerically and a location sorts before the locations nested in it.
func compareLocation(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		ai, aerr := strconv.Atoi(a[i])
		bi, berr := strconv.Atoi(b[i])
		if aerr == nil && berr == nil && ai != bi {
			return cmp.Compare(ai, bi)
		}
		return strings.Compare(a[i], b[i])
	}
	return cmp.Compare(len(a), len(b))
}

// Pointer renders a location as a JSON pointer (RFC 6901).
func Pointer(loc []string) string {
	if len(loc) == 0 {
		return ""
	}
	var b strings.Builder
	r := strings.NewReplacer("~", "~0", "/", "~1")
	for _, tok := range loc {
		b.WriteByte('/')
		b.WriteString(r.Replace(tok))
	}
	return b.String()
}

// normalize converts arbitrary Go values into the JSON value model the
// validator works on (maps, slices, json.Number, string, bool, nil).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}
