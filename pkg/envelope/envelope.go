// Package envelope decodes provider list responses that arrive in one of several shapes.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrUnrecognizedShape = errors.New("envelope_unrecognized_shape")

// Shape names the layout a list payload was found in.
type Shape string

const (
	ShapeData      Shape = "data"
	ShapeDataItems Shape = "data.items"
	ShapeItems     Shape = "items"
	ShapeArray     Shape = "array"
	ShapeObject    Shape = "object"
	ShapeEmpty     Shape = "empty"
)

type wrapper struct {
	Data  json.RawMessage `json:"data"`
	Items json.RawMessage `json:"items"`
}

// DecodeList decodes body into a slice of T, trying in order:
// {"data":[...]}, {"data":{"items":[...]}}, {"items":[...]}, a bare array and a single object.
// An empty body or a null or empty collection yields an empty slice.
func DecodeList[T any](body []byte) ([]T, Shape, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ShapeEmpty, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, ShapeArray, err
		}
		return items, ShapeArray, nil
	case '{':
	default:
		return nil, "", ErrUnrecognizedShape
	}

	var w wrapper
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, "", err
	}

	if data := bytes.TrimSpace(w.Data); len(data) > 0 {
		switch data[0] {
		case '[':
			var items []T
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, ShapeData, err
			}
			return items, ShapeData, nil
		case '{':
			var inner wrapper
			if err := json.Unmarshal(data, &inner); err != nil {
				return nil, ShapeDataItems, err
			}
			if items := bytes.TrimSpace(inner.Items); len(items) > 0 && items[0] == '[' {
				var out []T
				if err := json.Unmarshal(items, &out); err != nil {
					return nil, ShapeDataItems, err
				}
				return out, ShapeDataItems, nil
			}
		}
	}

	if items := bytes.TrimSpace(w.Items); len(items) > 0 && items[0] == '[' {
		var out []T
		if err := json.Unmarshal(items, &out); err != nil {
			return nil, ShapeItems, err
		}
		return out, ShapeItems, nil
	}

	if len(w.Data) > 0 || len(w.Items) > 0 {
		// A wrapper whose collection is null or an unexpected scalar carries no items.
		return nil, ShapeEmpty, nil
	}

	var single T
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, ShapeObject, err
	}
	return []T{single}, ShapeObject, nil
}
