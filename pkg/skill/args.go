package skill

import (
	stderrors "errors"
	"strings"

	"github.com/verdantlabs/verdant/pkg/errors"
)

// stringArg reads a trimmed string from an untyped argument bag.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg reads an integer from an untyped argument bag. JSON numbers
// arrive as float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// failureMessage strips the error-code prefix so tool results carry the
// human-readable message only.
func failureMessage(err error) string {
	var ve *errors.VerdantError
	if stderrors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	return err.Error()
}
