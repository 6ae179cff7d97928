// Package format keeps a document's on-page decoration (degree marks,
// parenthetical numbers, directional abbreviations, keyword references)
// survivable across word-level edits. The edit surface manipulates clean
// token values; the display shows reconstructed formatted values. The codec
// is stateless and idempotent: extracting twice on unchanged inputs yields an
// identical mapping.
package format

import (
	"strings"
	"unicode"

	"github.com/agenthands/scrivener/internal/core/model"
)

// ExtractMapping walks clean tokens and original words in lockstep and
// records, per clean token, the originally decorated value it stands for plus
// the formatting pattern to reapply after an edit.
//
// At each step the walk tries, in order: a pattern claim on the single
// original word, a pattern claim on a two-word keyword unit, a direct
// stripped-equality match, a greedy multi-word concatenation (several
// original words normalized into one clean token), and finally skipping an
// original word the tokenizer dropped. Leftover clean tokens simply have no
// entry; they display as their own clean value.
func ExtractMapping(originalText string, cleanTokens []string) model.FormatMapping {
	originals := strings.Fields(originalText)
	mapping := model.FormatMapping{}

	oi := 0
	for ci := 0; ci < len(cleanTokens) && oi < len(originals); {
		ow, ct := originals[oi], cleanTokens[ci]

		if entry, ok := claim(ow, ct, ci); ok {
			mapping = append(mapping, entry)
			oi++
			ci++
			continue
		}

		if oi+1 < len(originals) {
			unit := ow + " " + originals[oi+1]
			if entry, ok := claim(unit, ct, ci); ok {
				mapping = append(mapping, entry)
				oi += 2
				ci++
				continue
			}
		}

		if stripEqualFold(ow, ct) {
			mapping = append(mapping, model.FormatEntry{
				TokenIndex:    ci,
				CleanValue:    ct,
				OriginalValue: ow,
			})
			oi++
			ci++
			continue
		}

		if consumed, ok := greedyConcat(originals[oi:], ct); ok {
			mapping = append(mapping, model.FormatEntry{
				TokenIndex:    ci,
				CleanValue:    ct,
				OriginalValue: strings.Join(originals[oi:oi+consumed], " "),
			})
			oi += consumed
			ci++
			continue
		}

		// Original word with no counterpart in the clean stream (stray
		// punctuation, dropped tokens): keep scanning.
		oi++
	}
	return mapping
}

func claim(original, clean string, tokenIndex int) (model.FormatEntry, bool) {
	for _, p := range Patterns {
		if template, ok := p.Match(original, clean); ok {
			return model.FormatEntry{
				TokenIndex:    tokenIndex,
				CleanValue:    clean,
				OriginalValue: original,
				Pattern:       p.Name,
				Template:      template,
			}, true
		}
	}
	return model.FormatEntry{}, false
}

// greedyConcat consumes consecutive original words while their stripped
// concatenation stays a prefix of the clean token, succeeding once it matches
// exactly. Handles OCR output like "south east" normalized to "southeast".
func greedyConcat(originals []string, clean string) (int, bool) {
	target := strings.ToLower(stripWord(clean))
	first := strings.ToLower(stripWord(originals[0]))
	if first == "" || len(target) <= len(first) {
		return 0, false
	}
	concat := ""
	for i, ow := range originals {
		concat += strings.ToLower(stripWord(ow))
		if concat == target {
			return i + 1, true
		}
		if !strings.HasPrefix(target, concat) {
			return 0, false
		}
	}
	return 0, false
}

// CleanTokens normalizes original text into the clean token stream the edit
// surface manipulates: decorated values reduce to their bare value, keyword
// references collapse onto the value token, punctuation-only words drop out.
// ExtractMapping(text, CleanTokens(text)) recovers the decoration.
func CleanTokens(original string) []string {
	words := strings.Fields(original)
	tokens := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		w := words[i]
		if m := degreeMinuteRe.FindStringSubmatch(w); m != nil {
			tokens = append(tokens, m[1])
			continue
		}
		if m := degreeOnlyRe.FindStringSubmatch(w); m != nil {
			tokens = append(tokens, m[1])
			continue
		}
		if m := parenNumberRe.FindStringSubmatch(w); m != nil {
			tokens = append(tokens, m[1])
			continue
		}
		if m := directionalRe.FindStringSubmatch(w); m != nil {
			tokens = append(tokens, strings.ToLower(m[1]))
			continue
		}
		if isRefKeyword(w) && i+1 < len(words) {
			if v := strings.ToLower(stripWord(words[i+1])); v != "" {
				tokens = append(tokens, v)
				i++
				continue
			}
		}
		if v := strings.ToLower(stripWord(w)); v != "" {
			tokens = append(tokens, v)
		}
	}
	return tokens
}

func isRefKeyword(word string) bool {
	switch strings.ToLower(stripWord(word)) {
	case "section", "township", "range":
		return true
	}
	return false
}

// Reapply reconstructs the formatted representation of an edited token. An
// entry with no matched pattern returns the new value unchanged; a formatting
// miss is not an error.
func Reapply(entry model.FormatEntry, newValue string) string {
	if entry.Pattern == "" {
		return newValue
	}
	p, ok := patternByName(entry.Pattern)
	if !ok {
		return newValue
	}
	return p.Reapply(entry, newValue)
}

// RebuildText applies every mapping entry back into the tokenized clean text,
// replacing tokens from the highest index to the lowest so earlier-token
// offsets are unaffected by replacements of a different length. A token still
// equal to its clean value restores the original decorated value
// byte-for-byte.
func RebuildText(cleanText string, mapping model.FormatMapping) string {
	spans := tokenSpans(cleanText)

	ordered := make([]model.FormatEntry, len(mapping))
	copy(ordered, mapping)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].TokenIndex > ordered[i].TokenIndex {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	out := cleanText
	for _, entry := range ordered {
		if entry.TokenIndex < 0 || entry.TokenIndex >= len(spans) {
			continue
		}
		span := spans[entry.TokenIndex]
		current := cleanText[span.start:span.end]
		var replacement string
		if current == entry.CleanValue {
			replacement = entry.OriginalValue
		} else {
			replacement = Reapply(entry, current)
		}
		out = out[:span.start] + replacement + out[span.end:]
	}
	return out
}

type span struct {
	start, end int
}

func tokenSpans(text string) []span {
	var spans []span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, span{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, span{start: start, end: len(text)})
	}
	return spans
}
