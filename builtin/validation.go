package builtin

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateConfig checks config against the unit's config schema.
func ValidateConfig(meta UnitMetadata, config map[string]any) error {
	if len(meta.ConfigSchema) == 0 {
		return nil
	}
	if config == nil {
		config = map[string]any{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(meta.ConfigSchema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("%s: validation error: %w", meta.Type, err)
	}
	if !result.Valid() {
		return &ValidationError{Subject: meta.Type + " config", Problems: problems(result)}
	}
	return nil
}

// ValidationError lists the schema violations of a document.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is invalid: %s", e.Subject, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func problems(result *gojsonschema.Result) []string {
	out := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		out = append(out, re.String())
	}
	return out
}
