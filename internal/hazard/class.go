package hazard

import (
	"strconv"
	"strings"

	"github.com/negros-cram/brrs/internal/model"
)

// classSynonyms maps a lower-cased, whitespace-collapsed label to its class.
var classSynonyms = map[string]model.Class{
	"low": model.ClassLow,
	"l":   model.ClassLow,
	"lf":  model.ClassLow,
	"df":  model.ClassLow,
	"1":   model.ClassLow,

	"medium":   model.ClassMedium,
	"moderate": model.ClassMedium,
	"m":        model.ClassMedium,
	"mf":       model.ClassMedium,
	"2":        model.ClassMedium,

	"high": model.ClassHigh,
	"h":    model.ClassHigh,
	"hf":   model.ClassHigh,
	"3":    model.ClassHigh,

	"very high": model.ClassVeryHigh,
	"veryhigh":  model.ClassVeryHigh,
	"very_high": model.ClassVeryHigh,
	"vh":        model.ClassVeryHigh,
	"vhf":       model.ClassVeryHigh,
	"vf":        model.ClassVeryHigh,
	"4":         model.ClassVeryHigh,
}

// ParseClass normalizes a susceptibility label or numeric hazard level.
// Numeric text such as "3.0" is accepted when it is a whole level.
func ParseClass(raw string) (model.Class, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return model.ClassUnknown, false
	}
	if c, ok := classSynonyms[key]; ok {
		return c, true
	}

	v, err := strconv.ParseFloat(key, 64)
	if err != nil || v != float64(int(v)) {
		return model.ClassUnknown, false
	}
	switch int(v) {
	case 1:
		return model.ClassLow, true
	case 2:
		return model.ClassMedium, true
	case 3:
		return model.ClassHigh, true
	case 4:
		return model.ClassVeryHigh, true
	}
	return model.ClassUnknown, false
}

// ParseLabel is ParseClass with a fallback for descriptive labels like
// "High Susceptibility" found in liquefaction layers.
func ParseLabel(raw string) (model.Class, bool) {
	if c, ok := ParseClass(raw); ok {
		return c, true
	}

	up := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " "))
	switch {
	case strings.Contains(up, "VERY HIGH"):
		return model.ClassVeryHigh, true
	case strings.Contains(up, "HIGH"):
		return model.ClassHigh, true
	case strings.Contains(up, "MODERATE"), strings.Contains(up, "MEDIUM"):
		return model.ClassMedium, true
	case strings.Contains(up, "LOW"):
		return model.ClassLow, true
	}
	return model.ClassUnknown, false
}
