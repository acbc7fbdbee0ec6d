package prompt

import (
	"strings"
	"testing"

	"github.com/docfield/docfield/internal/types"
)

func sampleFields() []types.FieldSpec {
	return []types.FieldSpec{
		{
			FieldKey:      "Loan Amount",
			FieldKeyType:  types.FieldTypeAmount,
			NearFieldKeys: []string{"Contract Amount", "Principal"},
			Description:   "total amount lent under the contract",
		},
		{
			FieldKey:          "Contract Type",
			FieldKeyType:      types.FieldTypeText,
			FieldValueOptions: []string{"Loan", "Lease"},
		},
		{
			FieldKey:     "Signing Date",
			FieldKeyType: types.FieldTypeDate,
		},
	}
}

func TestBuild(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a, err := Build("doc text", sampleFields(), "")
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		b, err := Build("doc text", sampleFields(), "")
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if a != b {
			t.Error("identical inputs produced different prompts")
		}
	})

	t.Run("embeds document text and field contract", func(t *testing.T) {
		p, err := Build("THE QUICK BROWN CONTRACT", sampleFields(), "")
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		for _, want := range []string{
			"THE QUICK BROWN CONTRACT",
			"Loan Amount",
			"Contract Amount, Principal",
			"allowed values: Loan, Lease",
			"total amount lent under the contract",
			"Amount fields",
			"Date fields",
		} {
			if !strings.Contains(p, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("groups fields in fixed category order", func(t *testing.T) {
		// Match the section headers, not the instruction text, which also
		// mentions the category names.
		p, _ := Build("x", sampleFields(), "")
		textIdx := strings.Index(p, "### Text fields")
		amountIdx := strings.Index(p, "### Amount fields")
		dateIdx := strings.Index(p, "### Date fields")
		if textIdx == -1 || amountIdx == -1 || dateIdx == -1 {
			t.Fatalf("missing section headers: text=%d amount=%d date=%d", textIdx, amountIdx, dateIdx)
		}
		if !(textIdx < amountIdx && amountIdx < dateIdx) {
			t.Errorf("category order wrong: text=%d amount=%d date=%d", textIdx, amountIdx, dateIdx)
		}
	})

	t.Run("override replaces instruction but keeps field contract", func(t *testing.T) {
		p, err := Build("doc", sampleFields(), "Answer in French.")
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if !strings.Contains(p, "Answer in French.") {
			t.Error("override instruction missing")
		}
		if strings.Contains(p, "contract analysis assistant") {
			t.Error("default instruction should be replaced by override")
		}
		if !strings.Contains(p, "Loan Amount") || !strings.Contains(p, "doc") {
			t.Error("field contract and document text must survive override")
		}
	})

	t.Run("empty field list fails fast", func(t *testing.T) {
		if _, err := Build("doc", nil, ""); err == nil {
			t.Fatal("expected error for empty field specification")
		}
	})
}
