package jsonx

import "github.com/goccy/go-json"

// Thin alias layer so the rest of the codebase swaps JSON engines in one place.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
	Valid         = json.Valid
)

type RawMessage = json.RawMessage

type Number = json.Number
