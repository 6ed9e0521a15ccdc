package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/innovites/cableaudit/internal/domain/model"
)

var (
	reCSA       = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:mm²|mm2|mm\^2|sq\.?\s?mm|sqmm)`)
	reCopper    = regexp.MustCompile(`\b(?:(?i:copper)|Cu)\b`)
	reAluminium = regexp.MustCompile(`(?i)\balumin(?:ium|um)\b`)
	// reAlSymbol is the bare element symbol; it only counts next to other cable terms.
	reAlSymbol  = regexp.MustCompile(`\bAl\b`)
	reCableCue  = regexp.MustCompile(`(?i)\b(?:cables?|conductors?|cores?|insulat\w*|sheath\w*|armou?r\w*)\b`)
	reThickCue  = regexp.MustCompile(`(?i)\b(?:insulat\w*|thick\w*|sheath\w*)\b`)
	reClass     = regexp.MustCompile(`(?i)\bclass\s*([1-6])\b`)
	reInsMat    = regexp.MustCompile(`(?i)\b(PVC|XLPE|EPR|HEPR|LSZH)\b`)
	reThickness = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mm\b`)
	reVoltage   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)\s*kV|(\d+(?:\.\d+)?)\s*kV`)
	reStandard  = regexp.MustCompile(`\b(IS|IEC)\s*:?\s*(\d{3,5})(?:\s*-\s*(\d+)|\s*\(\s*[Pp]art\s*(\d+)\s*\))?`)
)

// PatternExtractor reads cable parameters out of free text with regular expressions.
// It needs no network access and always returns the same record for the same text.
type PatternExtractor struct{}

// NewPatternExtractor returns the offline extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Name implements Extractor.
func (*PatternExtractor) Name() string { return "pattern" }

// Extract implements Extractor.
func (*PatternExtractor) Extract(ctx context.Context, description string) (model.DesignRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.DesignRecord{}, err
	}

	var rec model.DesignRecord
	areas := reCSA.FindAllStringSubmatchIndex(description, -1)
	if len(areas) > 0 {
		rec.CSA = parsePositive(description[areas[0][2]:areas[0][3]])
	}
	cableText := len(areas) > 0 || reVoltage.MatchString(description) || reCableCue.MatchString(description)
	rec.ConductorMaterial = conductorMaterial(description, cableText)
	if m := reClass.FindStringSubmatch(description); m != nil {
		rec.ConductorClass = model.Ptr("Class " + m[1])
	}
	if m := reInsMat.FindStringSubmatch(description); m != nil {
		rec.InsulationMaterial = model.Ptr(strings.ToUpper(m[1]))
	}
	if len(areas) > 0 || reThickCue.MatchString(description) {
		rec.InsulationThickness = insulationThickness(description, areas)
	}
	rec.Voltage = voltage(description)
	rec.Standard = standard(description)
	return rec, nil
}

func parsePositive(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// conductorMaterial picks whichever material is mentioned first. The symbol "Al" is
// only read as a material when cableText is set.
func conductorMaterial(s string, cableText bool) *string {
	cu := reCopper.FindStringIndex(s)
	al := reAluminium.FindStringIndex(s)
	if cableText {
		if sym := reAlSymbol.FindStringIndex(s); sym != nil && (al == nil || sym[0] < al[0]) {
			al = sym
		}
	}
	switch {
	case cu != nil && (al == nil || cu[0] < al[0]):
		return model.Ptr(model.MaterialCopper)
	case al != nil:
		return model.Ptr(model.MaterialAluminium)
	default:
		return nil
	}
}

// insulationThickness takes the first plain "N mm" that is not part of an area. Callers
// only ask when the text gives an area or mentions insulation or thickness.
func insulationThickness(s string, areas [][]int) *float64 {
	for _, loc := range reThickness.FindAllStringSubmatchIndex(s, -1) {
		if strings.HasPrefix(s[loc[1]:], "²") || overlaps(loc, areas) {
			continue
		}
		if v := parsePositive(s[loc[2]:loc[3]]); v != nil {
			return v
		}
	}
	return nil
}

func overlaps(loc []int, areas [][]int) bool {
	for _, a := range areas {
		if loc[0] < a[1] && a[0] < loc[1] {
			return true
		}
	}
	return false
}

func voltage(s string) *string {
	m := reVoltage.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	if m[1] != "" {
		return model.Ptr(m[1] + "/" + m[2] + " kV")
	}
	return model.Ptr(m[3] + " kV")
}

func standard(s string) *string {
	m := reStandard.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	out := strings.ToUpper(m[1]) + " " + m[2]
	part := m[3]
	if part == "" {
		part = m[4]
	}
	if part != "" {
		out += "-" + part
	}
	return model.Ptr(out)
}
