// Package prompt renders the LLM request payload from OCR text and the
// caller's field specification.
package prompt

import (
	"fmt"
	"strings"

	"github.com/docfield/docfield/internal/types"
)

// defaultInstruction is the fixed instructional portion of the template.
// A caller-supplied prompt override replaces this section only; the field
// contract and document text are always appended unchanged.
const defaultInstruction = `You are a contract analysis assistant. Extract the requested fields from the document text below.

Rules:
- Return ONLY a JSON object mapping each requested field name to its extracted value.
- Use the exact field names from the field list as JSON keys.
- If a field cannot be found in the document, use an empty string as its value.
- Amount fields: return the numeric value only, without currency symbols or thousands separators.
- Date fields: return dates as YYYY-MM-DD.
- Duration fields: return a number followed by a unit (day, month or year).
- Do not invent values that are not present in the document.`

var categoryNames = map[types.FieldType]string{
	types.FieldTypeText:     "Text fields",
	types.FieldTypeAmount:   "Amount fields",
	types.FieldTypeDate:     "Date fields",
	types.FieldTypeDuration: "Duration fields",
}

// categoryOrder fixes the rendering order of field groups.
var categoryOrder = []types.FieldType{
	types.FieldTypeText,
	types.FieldTypeAmount,
	types.FieldTypeDate,
	types.FieldTypeDuration,
}

// Build composes the full prompt. It is a pure function: identical inputs
// always produce an identical prompt string.
func Build(ocrText string, fields []types.FieldSpec, override string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no field specification provided")
	}

	instruction := defaultInstruction
	if strings.TrimSpace(override) != "" {
		instruction = strings.TrimSpace(override)
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n## Fields to extract")
	b.WriteString(renderFields(fields))
	b.WriteString("\n\n## Document text\n")
	b.WriteString(ocrText)
	b.WriteString("\n\nReturn the JSON object now.")

	return b.String(), nil
}

// renderFields groups specs by type category, preserving spec order within
// each group.
func renderFields(fields []types.FieldSpec) string {
	var b strings.Builder
	for _, cat := range categoryOrder {
		var group []types.FieldSpec
		for _, fs := range fields {
			if fs.FieldKeyType == cat {
				group = append(group, fs)
			}
		}
		if len(group) == 0 {
			continue
		}

		b.WriteString("\n\n### ")
		b.WriteString(categoryNames[cat])
		for _, fs := range group {
			b.WriteString("\n- **")
			b.WriteString(fs.FieldKey)
			b.WriteString("**")
			if len(fs.NearFieldKeys) > 0 {
				b.WriteString(" (also appears as: ")
				b.WriteString(strings.Join(fs.NearFieldKeys, ", "))
				b.WriteString(")")
			}
			if len(fs.FieldValueOptions) > 0 {
				b.WriteString(" [allowed values: ")
				b.WriteString(strings.Join(fs.FieldValueOptions, ", "))
				b.WriteString("]")
			}
			if fs.Description != "" {
				b.WriteString(": ")
				b.WriteString(fs.Description)
			}
		}
	}
	return b.String()
}
