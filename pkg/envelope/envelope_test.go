package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID string `json:"id"`
}

func TestDecodeListShapes(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		shape Shape
		ids   []string
	}{
		{name: "data array", body: `{"data":[{"id":"a"},{"id":"b"}],"hasMore":false}`, shape: ShapeData, ids: []string{"a", "b"}},
		{name: "data items", body: `{"data":{"items":[{"id":"c"}]}}`, shape: ShapeDataItems, ids: []string{"c"}},
		{name: "items", body: `{"items":[{"id":"d"}]}`, shape: ShapeItems, ids: []string{"d"}},
		{name: "array", body: `[{"id":"e"}]`, shape: ShapeArray, ids: []string{"e"}},
		{name: "object", body: `{"id":"f"}`, shape: ShapeObject, ids: []string{"f"}},
		{name: "empty data", body: `{"data":[]}`, shape: ShapeData, ids: []string{}},
		{name: "null data", body: `{"data":null}`, shape: ShapeEmpty, ids: nil},
		{name: "blank", body: `  `, shape: ShapeEmpty, ids: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, shape, err := DecodeList[item]([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.shape, shape)
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			if tc.ids == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestDecodeListRejectsScalars(t *testing.T) {
	_, _, err := DecodeList[item]([]byte(`"nope"`))
	assert.ErrorIs(t, err, ErrUnrecognizedShape)
}
