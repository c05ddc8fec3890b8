// Package edit applies surgical operation batches to a parsed model:
// adding and removing variables and connections without disturbing any
// line the batch does not touch.
package edit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Operation names accepted in a batch.
const (
	OpAddVariable      = "add_variable"
	OpRemoveVariable   = "remove_variable"
	OpAddConnection    = "add_connection"
	OpRemoveConnection = "remove_connection"
	OpModifyConnection = "modify_connection"
)

// Operation is one entry of an edit batch.
type Operation struct {
	Operation  string          `json:"operation"`
	Variable   *VariableSpec   `json:"variable,omitempty"`
	Connection *ConnectionSpec `json:"connection,omitempty"`
	MDLComment string          `json:"mdl_comment,omitempty"`
}

// VariableSpec describes the variable an operation targets or creates.
// Position and Size are optional on add; defaults are chosen when absent.
type VariableSpec struct {
	Name     string    `json:"name"`
	Type     string    `json:"type,omitempty"` // Stock, Flow, or Auxiliary
	Position *Position `json:"position,omitempty"`
	Size     *SizeSpec `json:"size,omitempty"`
}

// Position is a sketch coordinate pair in operation payloads.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SizeSpec is a sketch extent pair in operation payloads.
type SizeSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ConnectionSpec names a causal connection by its endpoints. Relationship
// is "positive" or "negative"; for modify_connection it is the new value.
type ConnectionSpec struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship,omitempty"`
}

// opsSchema is the contract for a batch file. Validation happens before any
// operation runs so a malformed batch rejects wholesale instead of half
// applying.
const opsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["operations"],
  "properties": {
    "operations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["operation"],
        "properties": {
          "operation": {
            "enum": ["add_variable", "remove_variable", "add_connection", "remove_connection", "modify_connection"]
          },
          "variable": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "type": {"enum": ["Stock", "Flow", "Auxiliary"]},
              "position": {
                "type": "object",
                "properties": {"x": {"type": "integer"}, "y": {"type": "integer"}}
              },
              "size": {
                "type": "object",
                "properties": {"width": {"type": "integer"}, "height": {"type": "integer"}}
              }
            }
          },
          "connection": {
            "type": "object",
            "required": ["from", "to"],
            "properties": {
              "from": {"type": "string", "minLength": 1},
              "to": {"type": "string", "minLength": 1},
              "relationship": {"enum": ["positive", "negative"]}
            }
          },
          "mdl_comment": {"type": "string"}
        }
      }
    }
  }
}`

var opsSchemaCompiled = mustCompileOpsSchema()

func mustCompileOpsSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("ops.schema.json", strings.NewReader(opsSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("ops.schema.json")
}

// Batch is a decoded operation list.
type Batch struct {
	Operations []Operation `json:"operations"`
}

// DecodeBatch validates raw JSON against the batch schema and decodes it.
func DecodeBatch(data []byte) (*Batch, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("edit: batch is not valid JSON: %w", err)
	}
	if err := opsSchemaCompiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("edit: batch rejected by schema: %w", err)
	}
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("edit: decoding batch: %w", err)
	}
	return &b, nil
}
