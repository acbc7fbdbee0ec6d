package extract

import (
	"strings"

	"github.com/docfield/docfield/internal/types"
)

// Reconcile maps a decoded LLM response onto the requested field contract.
// Keys are matched exactly first, then case-insensitively through the
// field's aliases. A field that cannot be matched, fails its allowed-value
// check, or cannot be coerced to its declared type comes back as the empty
// string, which callers treat as "not found".
func Reconcile(fields []types.FieldSpec, raw map[string]string) map[string]string {
	folded := make(map[string]string, len(raw))
	for k, v := range raw {
		folded[strings.ToLower(strings.TrimSpace(k))] = v
	}

	out := make(map[string]string, len(fields))
	for _, f := range fields {
		val, ok := raw[f.FieldKey]
		if !ok {
			for _, alias := range append([]string{f.FieldKey}, f.NearFieldKeys...) {
				if v, found := folded[strings.ToLower(strings.TrimSpace(alias))]; found {
					val, ok = v, true
					break
				}
			}
		}
		if !ok {
			out[f.FieldKey] = ""
			continue
		}
		out[f.FieldKey] = normalizeField(f, strings.TrimSpace(val))
	}
	return out
}

func normalizeField(f types.FieldSpec, val string) string {
	if val == "" {
		return ""
	}

	if len(f.FieldValueOptions) > 0 {
		for _, opt := range f.FieldValueOptions {
			if val == opt {
				return val
			}
		}
		return ""
	}

	var (
		norm string
		err  error
	)
	switch f.FieldKeyType {
	case types.FieldTypeAmount:
		norm, err = NormalizeAmount(val)
	case types.FieldTypeDate:
		norm, err = NormalizeDate(val)
	case types.FieldTypeDuration:
		norm, err = NormalizeDuration(val)
	default:
		return val
	}
	if err != nil {
		return ""
	}
	return norm
}
