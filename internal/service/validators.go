package service

import (
	"encoding/json"
	"fmt"

	"collabflow/internal/domain"

	"gorm.io/datatypes"
)

// InputValidator checks that a buffered input's content is well-formed for
// its type before the queue applies it.
type InputValidator func(content datatypes.JSON) error

// ValidatorRegistry maps input types to their validators. Built once at
// startup and passed by reference; never mutated afterwards.
type ValidatorRegistry map[domain.InputType]InputValidator

// NewValidatorRegistry wires up the per-type content rules.
func NewValidatorRegistry() ValidatorRegistry {
	registry := make(ValidatorRegistry)

	registry[domain.InputFieldEdit] = func(content datatypes.JSON) error {
		fields, err := decodeObject(content)
		if err != nil {
			return err
		}
		if _, ok := fields["value"]; !ok {
			return fmt.Errorf("field edit requires a \"value\": %w", domain.ErrInputValidationFailed)
		}
		return nil
	}

	registry[domain.InputStepInput] = func(content datatypes.JSON) error {
		fields, err := decodeObject(content)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("step input must not be empty: %w", domain.ErrInputValidationFailed)
		}
		return nil
	}

	registry[domain.InputDecisionInput] = func(content datatypes.JSON) error {
		fields, err := decodeObject(content)
		if err != nil {
			return err
		}
		if _, ok := fields["decision"]; !ok {
			return fmt.Errorf("decision input requires a \"decision\": %w", domain.ErrInputValidationFailed)
		}
		return nil
	}

	registry[domain.InputChatMessage] = func(content datatypes.JSON) error {
		fields, err := decodeObject(content)
		if err != nil {
			return err
		}
		text, ok := fields["text"].(string)
		if !ok || text == "" {
			return fmt.Errorf("chat message requires non-empty \"text\": %w", domain.ErrInputValidationFailed)
		}
		return nil
	}

	return registry
}

// Validate dispatches to the type's validator; unknown types are malformed.
func (r ValidatorRegistry) Validate(inputType domain.InputType, content datatypes.JSON) error {
	validator, ok := r[inputType]
	if !ok {
		return fmt.Errorf("unknown input type %q: %w", inputType, domain.ErrInputValidationFailed)
	}
	return validator(content)
}

func decodeObject(content datatypes.JSON) (map[string]any, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty content: %w", domain.ErrInputValidationFailed)
	}
	var fields map[string]any
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, fmt.Errorf("content is not a JSON object: %w", domain.ErrInputValidationFailed)
	}
	return fields, nil
}
