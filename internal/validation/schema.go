// Package validation checks request bodies against JSON Schemas reflected
// from the request models.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"city-planner/backend/pkg/models"
)

var (
	// ErrUnknownSchema is returned for a schema name that was never registered.
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrInvalid marks a document that does not match its schema.
	ErrInvalid = errors.New("schema validation failed")
)

// Schema names.
const (
	Plan      = "plan"
	Trip      = "trip"
	Flight    = "flight"
	Hotel     = "hotel"
	Currency  = "currency"
	Visa      = "visa"
	Insurance = "insurance"
	Group     = "group"
)

var requestTypes = map[string]any{
	Plan:      models.PlanRequest{},
	Trip:      models.TripRequest{},
	Flight:    models.FlightQuery{},
	Hotel:     models.HotelQuery{},
	Currency:  models.CurrencyQuery{},
	Visa:      models.VisaQuery{},
	Insurance: models.InsuranceQuery{},
	Group:     models.GroupQuery{},
}

type entry struct {
	raw      []byte
	compiled *jsonschemav5.Schema
}

// Validator holds the compiled request schemas.
type Validator struct {
	schemas map[string]entry
}

// ConvertStructToJSONSchema reflects a Go struct to a JSON Schema document.
func ConvertStructToJSONSchema(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("schema struct is nil")
	}
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		Anonymous:                  true,
	}
	b, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return b, nil
}

// New reflects and compiles the schema of every request type.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[string]entry, len(requestTypes))}
	for name, typ := range requestTypes {
		raw, err := ConvertStructToJSONSchema(typ)
		if err != nil {
			return nil, fmt.Errorf("failed to reflect %s schema: %w", name, err)
		}

		compiler := jsonschemav5.NewCompiler()
		id := "schema://" + name
		if err := compiler.AddResource(id, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to add %s schema: %w", name, err)
		}
		compiled, err := compiler.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
		}
		v.schemas[name] = entry{raw: raw, compiled: compiled}
	}
	return v, nil
}

// Names lists the registered schemas.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.schemas))
	for n := range v.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schema returns the JSON Schema document for name.
func (v *Validator) Schema(name string) (json.RawMessage, error) {
	e, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return json.RawMessage(e.raw), nil
}

// Validate checks a JSON document against the schema called name.
func (v *Validator) Validate(name string, doc []byte) error {
	e, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	var data any
	if err := json.Unmarshal(doc, &data); err != nil {
		return fmt.Errorf("%w: malformed JSON: %w", ErrInvalid, err)
	}
	if err := e.compiled.Validate(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}
	return nil
}

// ValidateValue marshals v and validates the result.
func (v *Validator) ValidateValue(name string, value any) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s input: %w", name, err)
	}
	return v.Validate(name, doc)
}
