package format

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/agenthands/scrivener/internal/core/model"
)

// Pattern is one named surface-formatting convention found in property
// descriptions. Match decides whether an original word (or keyword unit)
// corresponds to a clean token and, if so, yields the reapplication template.
// Reapply reconstructs the decorated form around a replacement value.
type Pattern struct {
	Name    string
	Match   func(original, clean string) (template string, ok bool)
	Reapply func(entry model.FormatEntry, newValue string) string
}

// Patterns is the ordered dispatch table; first match wins, so the order here
// is the priority order.
var Patterns = []Pattern{
	degreeMinutePattern,
	degreeOnlyPattern,
	parentheticalNumberPattern,
	directionalPattern,
	keywordRefPattern("section-ref", "Section"),
	keywordRefPattern("township-ref", "Township"),
	keywordRefPattern("range-ref", "Range"),
	caseFormatPattern,
}

func patternByName(name string) (Pattern, bool) {
	for _, p := range Patterns {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}

var (
	degreeMinuteRe = regexp.MustCompile(`^(\d+)°(\d+['′]?)$`)
	degreeOnlyRe   = regexp.MustCompile(`^(\d+)°$`)
	parenNumberRe  = regexp.MustCompile(`^\((\d+)\)$`)
	directionalRe  = regexp.MustCompile(`^([NSEWnsew]{1,2})\.$`)
)

// degree-minute: a single token carrying both values, e.g. 45°30'. The minute
// suffix is preserved verbatim while the degree value is substituted.
var degreeMinutePattern = Pattern{
	Name: "degree-minute",
	Match: func(original, clean string) (string, bool) {
		m := degreeMinuteRe.FindStringSubmatch(original)
		if m == nil || !strings.EqualFold(m[1], stripWord(clean)) {
			return "", false
		}
		return "%s°" + m[2], true
	},
	Reapply: func(entry model.FormatEntry, newValue string) string {
		return fmt.Sprintf(entry.Template, newValue)
	},
}

var degreeOnlyPattern = Pattern{
	Name: "degree-only",
	Match: func(original, clean string) (string, bool) {
		m := degreeOnlyRe.FindStringSubmatch(original)
		if m == nil || !strings.EqualFold(m[1], stripWord(clean)) {
			return "", false
		}
		return "%s°", true
	},
	Reapply: func(entry model.FormatEntry, newValue string) string {
		return fmt.Sprintf(entry.Template, newValue)
	},
}

var parentheticalNumberPattern = Pattern{
	Name: "parenthetical-number",
	Match: func(original, clean string) (string, bool) {
		m := parenNumberRe.FindStringSubmatch(original)
		if m == nil || !strings.EqualFold(m[1], stripWord(clean)) {
			return "", false
		}
		return "(%s)", true
	},
	Reapply: func(entry model.FormatEntry, newValue string) string {
		return fmt.Sprintf(entry.Template, newValue)
	},
}

// directional-abbreviation: N. / S.E. style bearings; reapplication
// upper-cases the value and restores the period.
var directionalPattern = Pattern{
	Name: "directional-abbreviation",
	Match: func(original, clean string) (string, bool) {
		m := directionalRe.FindStringSubmatch(original)
		if m == nil || !strings.EqualFold(m[1], stripWord(clean)) {
			return "", false
		}
		return "%s.", true
	},
	Reapply: func(entry model.FormatEntry, newValue string) string {
		return fmt.Sprintf(entry.Template, strings.ToUpper(newValue))
	},
}

// keywordRefPattern covers Section/Township/Range word-number references
// where the keyword and the value travel as a two-word unit mapped onto the
// value's clean token.
func keywordRefPattern(name, keyword string) Pattern {
	re := regexp.MustCompile(`^(?i)` + keyword + `\s+(\S+)$`)
	return Pattern{
		Name: name,
		Match: func(original, clean string) (string, bool) {
			m := re.FindStringSubmatch(original)
			if m == nil || !strings.EqualFold(stripWord(m[1]), stripWord(clean)) {
				return "", false
			}
			return keyword + " %s", true
		},
		Reapply: func(entry model.FormatEntry, newValue string) string {
			return fmt.Sprintf(entry.Template, capitalizeFirst(newValue))
		},
	}
}

// case-format: the catch-all that reproduces the original token's casing
// (and any leading/trailing punctuation) onto the new value.
var caseFormatPattern = Pattern{
	Name: "case-format",
	Match: func(original, clean string) (string, bool) {
		// Single words only; multi-word units belong to the keyword
		// reference patterns or the greedy concatenation walk.
		if strings.ContainsAny(original, " \t") || !stripEqualFold(original, clean) {
			return "", false
		}
		core := trimDecoration(original)
		casing, ok := detectCasing(core)
		if !ok {
			return "", false
		}
		return casing, true
	},
	Reapply: func(entry model.FormatEntry, newValue string) string {
		prefix, _, suffix := splitDecoration(entry.OriginalValue)
		return prefix + applyCasing(entry.Template, newValue) + suffix
	},
}

func stripWord(word string) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripEqualFold(original, clean string) bool {
	return strings.EqualFold(stripWord(original), stripWord(clean))
}

func trimDecoration(word string) string {
	_, core, _ := splitDecoration(word)
	return core
}

func splitDecoration(word string) (prefix, core, suffix string) {
	runes := []rune(word)
	start := 0
	for start < len(runes) && !unicode.IsLetter(runes[start]) && !unicode.IsDigit(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsDigit(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func detectCasing(core string) (string, bool) {
	hasLetter := strings.IndexFunc(core, unicode.IsLetter) >= 0
	if !hasLetter {
		return "", false
	}
	lower := strings.ToLower(core)
	upper := strings.ToUpper(core)
	switch {
	case core == upper && core != lower:
		return "upper", true
	case core == lower:
		return "lower", true
	case core == capitalizeFirst(lower):
		return "title", true
	default:
		return "", false
	}
}

func applyCasing(casing, value string) string {
	switch casing {
	case "upper":
		return strings.ToUpper(value)
	case "lower":
		return strings.ToLower(value)
	case "title":
		return capitalizeFirst(strings.ToLower(value))
	default:
		return value
	}
}

func capitalizeFirst(value string) string {
	runes := []rune(value)
	if len(runes) == 0 {
		return value
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
