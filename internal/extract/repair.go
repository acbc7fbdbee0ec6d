package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// responseSchema constrains phase-one decoding: a flat JSON object whose
// values are scalars. Nested structures mean the model ignored the contract.
var responseSchema = jsonschema.MustCompileString("llm-response.json", `{
	"type": "object",
	"additionalProperties": {
		"type": ["string", "number", "integer", "boolean", "null"]
	}
}`)

// RepairJSON extracts the JSON object from raw LLM output: markdown fences
// are stripped, text outside the outermost braces is dropped, and trailing
// commas are removed.
func RepairJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty llm response")
	}

	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	l, r := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if l == -1 || r == -1 || r <= l {
		return "", fmt.Errorf("no JSON object in llm response")
	}
	text = text[l : r+1]

	if !json.Valid([]byte(text)) {
		text = trailingCommaRe.ReplaceAllString(text, "$1")
		if !json.Valid([]byte(text)) {
			return "", fmt.Errorf("llm response is not valid JSON")
		}
	}

	return text, nil
}

// DecodeResponse parses repaired LLM output into a key to string mapping.
// Decoding is strict: a malformed or non-flat response is an explicit
// error, never silently defaulted.
func DecodeResponse(text string) (map[string]string, error) {
	repaired, err := RepairJSON(text)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal([]byte(repaired), &generic); err != nil {
		return nil, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if err := responseSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("llm response shape invalid: %w", err)
	}

	obj := generic.(map[string]any)
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = strings.Trim(strings.TrimSpace(t), "_ ")
		case float64:
			out[k] = formatNumber(t)
		case bool:
			out[k] = fmt.Sprintf("%t", t)
		}
	}
	return out, nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
