package cfg

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct constraints and cross-field rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, e := range verrs {
			problems = append(problems, formatFieldError(e))
		}
	}

	names := make([]string, 0, len(cfg.Bands))
	for name := range cfg.Bands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := cfg.Bands[name]
		if b.Min < 0 {
			problems = append(problems, fmt.Sprintf("bands.%s.min must not be negative (got: %d)", name, b.Min))
		}
		if b.Min >= b.Max {
			problems = append(problems, fmt.Sprintf("bands.%s must satisfy min < max (got: %s)", name, b))
		}
	}

	if cfg.DefaultBand != "" {
		if _, ok := cfg.Bands[cfg.DefaultBand]; !ok {
			problems = append(problems, fmt.Sprintf("default_band %q is not defined in bands", cfg.DefaultBand))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s (got: %v)", field, toSnake(e.Param()), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", field, e.Tag(), e.Value())
	}
}

// fieldPath turns "Config.Bounds.MinX" into "bounds.min_x".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}
	out := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		out = append(out, toSnake(p))
	}
	return strings.Join(out, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev < 'A' || prev > 'Z' {
				b.WriteRune('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
