package oauthclient

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
)

// FirstIdentifier returns the value of the first of fields that is present in raw and not
// null. Presence is what counts: "" and a numeric 0 are returned as they are. A present
// value that is not a JSON scalar fails with ErrUnexpectedResponse instead of falling
// through to the next field. No candidate present gives ErrMissingIdentifier.
func FirstIdentifier(raw map[string]any, fields ...string) (string, error) {
	for _, field := range fields {
		v, present := raw[field]
		if !present || v == nil {
			continue
		}
		id, ok := IdentifierString(v)
		if !ok {
			return "", fmt.Errorf("%w: %s is not a scalar", errors.ErrUnexpectedResponse, field)
		}
		return id, nil
	}
	return "", errors.ErrMissingIdentifier
}

// IdentifierString renders a scalar JSON value as an identifier. Numbers are written
// without exponent so that a value and its JSON round trip produce the same string.
func IdentifierString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	}
	return "", false
}
