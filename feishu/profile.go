package feishu

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/jrsteele09/go-feishu-auth/internal/utils"
	"github.com/jrsteele09/go-feishu-auth/oauthclient"
)

// identifierFields are tried in order; the first present, non-null value becomes the profile id,
// even when it is an empty string.
var identifierFields = []string{"user_id", "union_id", "open_id"}

// Avatar holds the user's avatar URLs at the four sizes Feishu serves.
type Avatar struct {
	Icon   string `json:"icon,omitempty"`
	Thumb  string `json:"thumb,omitempty"`
	Middle string `json:"middle,omitempty"`
	Big    string `json:"big,omitempty"`
}

// Profile is the normalized Feishu user.
//
// Email and Mobile are nil when the payload did not carry them, and are then left out of
// the JSON encoding entirely.
type Profile struct {
	Provider string  `json:"provider"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    *string `json:"email,omitempty"`
	Mobile   *string `json:"mobile,omitempty"`
	Avatar   Avatar  `json:"avatar"`
}

// ParseProfile normalizes a decoded profile payload (the "data" object of user_info).
func ParseProfile(raw map[string]any) (*Profile, error) {
	if raw == nil {
		return nil, fmt.Errorf("feishu profile: %w", errors.ErrUnexpectedResponse)
	}

	id, err := oauthclient.FirstIdentifier(raw, identifierFields...)
	if err != nil {
		return nil, errors.Wrapf(err, "feishu profile")
	}

	profile := &Profile{
		ID:   id,
		Name: stringField(raw, "name"),
		Avatar: Avatar{
			Icon:   stringField(raw, "avatar_url"),
			Thumb:  stringField(raw, "avatar_thumb"),
			Middle: stringField(raw, "avatar_middle"),
			Big:    stringField(raw, "avatar_big"),
		},
		Email:  optionalField(raw, "email"),
		Mobile: optionalField(raw, "mobile"),
	}
	return profile, nil
}

// ParseProfileJSON decodes a JSON profile payload and normalizes it.
func ParseProfileJSON(data []byte) (*Profile, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: feishu profile: %v", errors.ErrUnexpectedResponse, err)
	}
	return ParseProfile(raw)
}

// ParseProfileString is ParseProfileJSON for a JSON-encoded string.
func ParseProfileString(data string) (*Profile, error) {
	return ParseProfileJSON([]byte(data))
}

func stringField(raw map[string]any, field string) string {
	s, _ := raw[field].(string)
	return s
}

func optionalField(raw map[string]any, field string) *string {
	return utils.NonEmpty(stringField(raw, field))
}
