package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Params is the untrusted key/value payload accompanying every mount request
// and every event. The pipeline passes it verbatim to handlers and never
// interprets it itself.
type Params map[string]any

// String returns the value for key if it is a string, or "" otherwise.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Decode binds the params into a typed struct using mapstructure tags.
// This is a convenience for handler authors; weakly typed input means
// "7" decodes into an int field.
func (p Params) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
