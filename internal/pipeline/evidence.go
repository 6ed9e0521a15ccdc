package pipeline

import (
	"strings"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// EvidenceHeader opens every evidence document.
const EvidenceHeader = "### DATABASE VALIDATION EVIDENCE (IS 8130):"

// Values are escaped so the " | " separator and line breaks only ever come from the layout.
var (
	escapeValue   = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", `\n`)
	unescapeValue = strings.NewReplacer(`\\`, `\`, `\|`, `|`, `\n`, "\n")
)

// EvidenceFormatter renders verdicts one per line, in the order given.
type EvidenceFormatter struct{}

// Format implements Formatter.
func (EvidenceFormatter) Format(verdicts []model.FieldVerdict) model.EvidenceDocument {
	var b strings.Builder
	b.WriteString(EvidenceHeader)
	for _, v := range verdicts {
		expected := "N/A"
		if v.Expected != nil {
			expected = escapeValue.Replace(*v.Expected)
		}
		b.WriteString("\nField: ")
		b.WriteString(escapeValue.Replace(v.Field))
		b.WriteString(" | Status: ")
		b.WriteString(escapeValue.Replace(string(v.Status)))
		b.WriteString(" | Expected: ")
		b.WriteString(expected)
		b.WriteString(" | Comment: ")
		b.WriteString(escapeValue.Replace(v.Comment))
	}
	return model.EvidenceDocument(b.String())
}

// ParseEvidence reads verdicts back out of a document produced by Format.
// Lines that do not follow the verdict layout are skipped.
func ParseEvidence(doc model.EvidenceDocument) []model.FieldVerdict {
	lines := strings.Split(string(doc), "\n")
	out := make([]model.FieldVerdict, 0, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, " | ", 4)
		if len(parts) != 4 {
			continue
		}
		field, ok1 := strings.CutPrefix(parts[0], "Field: ")
		status, ok2 := strings.CutPrefix(parts[1], "Status: ")
		expected, ok3 := strings.CutPrefix(parts[2], "Expected: ")
		comment, ok4 := strings.CutPrefix(parts[3], "Comment: ")
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		fv := model.FieldVerdict{
			Field:   unescapeValue.Replace(field),
			Status:  model.VerdictStatus(unescapeValue.Replace(status)),
			Comment: unescapeValue.Replace(comment),
		}
		if expected != "N/A" {
			fv.Expected = model.Ptr(unescapeValue.Replace(expected))
		}
		out = append(out, fv)
	}
	return out
}
