package caption

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/domain/kino"
)

// ErrSchemaViolation wraps every payload that does not match the caption schema.
var ErrSchemaViolation = errors.New("caption schema violation")

// decodeCaption validates required keys and decodes without type coercion.
// Keys outside the schema are ignored.
func decodeCaption(payload map[string]any) (kino.Caption, error) {
	for _, field := range kino.RequiredFields() {
		value, ok := payload[field]
		if !ok {
			return kino.Caption{}, fmt.Errorf("%w: missing field %q", ErrSchemaViolation, field)
		}
		if value == nil {
			return kino.Caption{}, fmt.Errorf("%w: null field %q", ErrSchemaViolation, field)
		}
	}

	switch tags := payload[kino.FieldHashtags].(type) {
	case []string:
	case []any:
		for i, tag := range tags {
			if _, ok := tag.(string); !ok {
				return kino.Caption{}, fmt.Errorf("%w: %s[%d] is %T", ErrSchemaViolation, kino.FieldHashtags, i, tag)
			}
		}
	default:
		return kino.Caption{}, fmt.Errorf("%w: %q must be an array", ErrSchemaViolation, kino.FieldHashtags)
	}

	var caption kino.Caption
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &caption,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
		ZeroFields:       true,
	})
	if err != nil {
		return kino.Caption{}, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return kino.Caption{}, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if caption.Hashtags == nil {
		caption.Hashtags = []string{}
	}
	return caption, nil
}
