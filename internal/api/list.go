package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decode unmarshals a response into out. List targets (*[]T) accept both a
// bare array and a {"data": [...]} envelope; any other shape yields an empty
// list rather than an error, since some server versions answer list routes
// with an object when nothing matches.
func decode(data []byte, out interface{}) error {
	if l, ok := out.(listTarget); ok {
		return l.decodeList(data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type listTarget interface {
	decodeList(data []byte) error
}

// list wraps a slice pointer so decode can normalize envelopes.
type list[T any] struct {
	items *[]T
}

func listOf[T any](items *[]T) list[T] {
	return list[T]{items: items}
}

func (l list[T]) decodeList(data []byte) error {
	raw, err := NormalizeList(data)
	if err != nil {
		return err
	}
	if raw == nil {
		*l.items = []T{}
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	*l.items = items
	return nil
}

// NormalizeList returns the JSON array held by data, unwrapping a
// {"data": [...]} envelope. It returns nil when data holds no array.
func NormalizeList(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		return json.RawMessage(trimmed), nil
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("failed to decode envelope: %w", err)
		}
		inner := bytes.TrimSpace(env.Data)
		if len(inner) > 0 && inner[0] == '[' {
			return json.RawMessage(inner), nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}
