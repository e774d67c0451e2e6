package domain

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed state.schema.json
var stateSchemaJSON string

const stateSchemaURL = "https://a2ui.schemas.local/state.schema.json"

// ErrInvalidState is returned when state JSON does not match the schema.
var ErrInvalidState = errors.New("invalid application state")

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(stateSchemaURL, strings.NewReader(stateSchemaJSON)); err != nil {
			stateSchemaErr = fmt.Errorf("failed to load state schema: %w", err)
			return
		}
		stateSchema, stateSchemaErr = c.Compile(stateSchemaURL)
		if stateSchemaErr != nil {
			stateSchemaErr = fmt.Errorf("failed to compile state schema: %w", stateSchemaErr)
		}
	})
	return stateSchema, stateSchemaErr
}

// DecodeState validates raw against the state schema and decodes it.
// Empty input and JSON null decode to nil.
func DecodeState(raw []byte) (*State, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	schema, err := compiledStateSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return &state, nil
}
