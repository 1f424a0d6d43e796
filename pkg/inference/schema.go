package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const predictionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["predicted_value", "confidence_score", "risk_level", "model_version"],
  "properties": {
    "predicted_value": {"type": "number", "minimum": 0, "maximum": 100},
    "confidence_score": {"type": "number", "minimum": 0, "maximum": 100},
    "risk_level": {"enum": ["very_low", "low", "medium", "high", "very_high"]},
    "model_version": {"type": "string", "minLength": 1},
    "contributing_factors": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    }
  }
}`

const forecastSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["success_probability", "confidence_level", "model_version"],
  "properties": {
    "success_probability": {"type": "number", "minimum": 0, "maximum": 100},
    "confidence_level": {"type": "number", "minimum": 0, "maximum": 100},
    "predicted_score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
    "model_version": {"type": "string", "minLength": 1}
  }
}`

var (
	predictionValidator = jsonschema.MustCompileString("prediction.schema.json", predictionSchema)
	forecastValidator   = jsonschema.MustCompileString("forecast.schema.json", forecastSchema)
)

// decodeValidated checks raw against schema before decoding it into target.
func decodeValidated(schema *jsonschema.Schema, raw []byte, target interface{}) error {
	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("decode inference payload: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("inference payload rejected: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode inference payload: %w", err)
	}
	return nil
}
