package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONEngineId is the version-pinned id of the built-in reference engine.
const JSONEngineId = "json/v1"

// JSONEngine interprets each statement as a JSON-encoded
// CollectionActions document (§4.7 reference engine). It is
// deterministic: two peers executing the same statements over the
// same tracker state parse byte-for-byte identical documents into
// byte-for-byte identical CollectionActions.
type JSONEngine struct{}

// NewJSONEngine constructs the built-in reference engine.
func NewJSONEngine() *JSONEngine {
	return &JSONEngine{}
}

func (e *JSONEngine) EngineId() string {
	return JSONEngineId
}

func (e *JSONEngine) Execute(_ context.Context, statements []string) (Result, error) {
	var out []CollectionActions
	for i, stmt := range statements {
		var doc CollectionActions
		if err := json.Unmarshal([]byte(stmt), &doc); err != nil {
			return Result{Success: false, Error: fmt.Sprintf("statement %d: invalid JSON: %v", i, err)}, nil
		}
		if err := validate(doc); err != nil {
			return Result{Success: false, Error: fmt.Sprintf("statement %d: %v", i, err)}, nil
		}
		out = append(out, doc)
	}
	return Result{Success: true, Actions: out}, nil
}

func validate(doc CollectionActions) error {
	if doc.CollectionId == "" {
		return fmt.Errorf("collectionId must be a non-empty string")
	}
	if len(doc.Actions) == 0 {
		return fmt.Errorf("actions must be a non-empty array")
	}
	return nil
}
