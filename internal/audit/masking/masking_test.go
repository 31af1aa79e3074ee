package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"tax_id":  "123.456.789-01",
		"email":   "joana@example.com",
		"credits": 500,
		"nested":  map[string]any{"cpf_cnpj": "12345678000199", "note": "kept"},
		"":        "dropped",
	})

	assert.Equal(t, "****01", out["tax_id"])
	assert.Equal(t, "j****@example.com", out["email"])
	assert.Equal(t, 500, out["credits"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "****99", nested["cpf_cnpj"])
	assert.Equal(t, "kept", nested["note"])
	assert.NotContains(t, out, "")
}

func TestMaskIdentifierShortValues(t *testing.T) {
	assert.Equal(t, "", MaskIdentifier("  "))
	assert.Equal(t, "****", MaskIdentifier("abc"))
}
