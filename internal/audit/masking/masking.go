package masking

import (
	"strings"
	"unicode"
)

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"tax_id":   {},
	"cpf_cnpj": {},
	"email":    {},
	"api_key":  {},
	"token":    {},
}

// MaskIdentifier redacts an identifier while keeping the last two characters for support lookups.
func MaskIdentifier(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-2:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskIdentifier(trimmed)
	}
	first := []rune(trimmed[:at])[0]
	return string(first) + maskToken + trimmed[at:]
}

// MaskMetadata copies metadata, masking values stored under sensitive keys at any depth.
func MaskMetadata(input map[string]any) map[string]any {
	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskValue(trimmedKey, value)
	}
	return masked
}

func maskValue(key string, value any) any {
	switch cast := value.(type) {
	case string:
		if !isSensitive(key) {
			return cast
		}
		if strings.Contains(cast, "@") {
			return MaskEmail(cast)
		}
		return MaskIdentifier(cast)
	case map[string]any:
		return MaskMetadata(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(key, item))
		}
		return out
	default:
		return value
	}
}

func isSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimFunc(key, func(r rune) bool { return !unicode.IsLetter(r) }))
	_, ok := sensitiveKeys[normalized]
	return ok
}
