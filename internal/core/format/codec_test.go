package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/scrivener/internal/core/model"
)

func entryFor(t *testing.T, mapping model.FormatMapping, tokenIndex int) model.FormatEntry {
	t.Helper()
	for _, e := range mapping {
		if e.TokenIndex == tokenIndex {
			return e
		}
	}
	t.Fatalf("no mapping entry for token %d", tokenIndex)
	return model.FormatEntry{}
}

func TestDegreeRoundTrip(t *testing.T) {
	original := "4° 00'"
	clean := []string{"4", "00"}

	mapping := ExtractMapping(original, clean)
	require.Len(t, mapping, 2)

	degree := entryFor(t, mapping, 0)
	assert.Equal(t, "degree-only", degree.Pattern)
	assert.Equal(t, "4°", degree.OriginalValue)

	// Edit the degree value; the minute token is untouched and must come
	// back byte-for-byte.
	rebuilt := RebuildText("6 00", mapping)
	assert.Equal(t, "6° 00'", rebuilt)
}

func TestDegreeMinuteSingleToken(t *testing.T) {
	mapping := ExtractMapping("bearing 45°30' east", []string{"bearing", "45", "east"})
	entry := entryFor(t, mapping, 1)
	assert.Equal(t, "degree-minute", entry.Pattern)

	assert.Equal(t, "50°30'", Reapply(entry, "50"))
	// The minute suffix is preserved exactly, whatever the new degrees.
	assert.Equal(t, "7°30'", Reapply(entry, "7"))
}

func TestParentheticalNumber(t *testing.T) {
	mapping := ExtractMapping("Lot (2) of the plat", []string{"lot", "2", "of", "the", "plat"})
	entry := entryFor(t, mapping, 1)
	assert.Equal(t, "parenthetical-number", entry.Pattern)
	assert.Equal(t, "(3)", Reapply(entry, "3"))
}

func TestDirectionalAbbreviation(t *testing.T) {
	mapping := ExtractMapping("N. 45° E.", []string{"n", "45", "e"})
	north := entryFor(t, mapping, 0)
	assert.Equal(t, "directional-abbreviation", north.Pattern)
	assert.Equal(t, "S.", Reapply(north, "s"))

	east := entryFor(t, mapping, 2)
	assert.Equal(t, "directional-abbreviation", east.Pattern)
	assert.Equal(t, "W.", Reapply(east, "w"))
}

func TestKeywordReferenceUnit(t *testing.T) {
	original := "in Section 14 Township 3 Range 22"
	clean := []string{"in", "14", "3", "22"}

	mapping := ExtractMapping(original, clean)

	section := entryFor(t, mapping, 1)
	assert.Equal(t, "section-ref", section.Pattern)
	assert.Equal(t, "Section 14", section.OriginalValue)
	assert.Equal(t, "Section 15", Reapply(section, "15"))

	township := entryFor(t, mapping, 2)
	assert.Equal(t, "township-ref", township.Pattern)
	assert.Equal(t, "Township Four", Reapply(township, "four"))

	rng := entryFor(t, mapping, 3)
	assert.Equal(t, "range-ref", rng.Pattern)
	assert.Equal(t, "Range 23", Reapply(rng, "23"))
}

func TestCaseFormatting(t *testing.T) {
	mapping := ExtractMapping("NORTH Quarter corner,", []string{"north", "quarter", "corner"})

	upper := entryFor(t, mapping, 0)
	assert.Equal(t, "case-format", upper.Pattern)
	assert.Equal(t, "SOUTH", Reapply(upper, "south"))

	title := entryFor(t, mapping, 1)
	assert.Equal(t, "case-format", title.Pattern)
	assert.Equal(t, "Half", Reapply(title, "half"))

	// Trailing punctuation on the original survives the edit.
	comma := entryFor(t, mapping, 2)
	assert.Equal(t, "edge,", Reapply(comma, "edge"))
}

func TestGreedyMultiWordConsume(t *testing.T) {
	mapping := ExtractMapping("the south east quarter", []string{"the", "southeast", "quarter"})

	entry := entryFor(t, mapping, 1)
	assert.Equal(t, "south east", entry.OriginalValue)
	assert.Equal(t, "southeast", entry.CleanValue)
	assert.Empty(t, entry.Pattern)
}

func TestUnmatchedOriginalWordIsSkipped(t *testing.T) {
	// The stray dash has no clean counterpart; the walk skips it and keeps
	// scanning.
	mapping := ExtractMapping("north — boundary", []string{"north", "boundary"})
	require.Len(t, mapping, 2)
	assert.Equal(t, "north", entryFor(t, mapping, 0).OriginalValue)
	assert.Equal(t, "boundary", entryFor(t, mapping, 1).OriginalValue)
}

func TestReapplyMissReturnsCleanValue(t *testing.T) {
	entry := model.FormatEntry{TokenIndex: 0, CleanValue: "plain", OriginalValue: "plain"}
	assert.Equal(t, "edited", Reapply(entry, "edited"))
}

func TestExtractMappingIsIdempotent(t *testing.T) {
	original := "N. 4° 00' along Section 14 to the (2) corner"
	clean := []string{"n", "4", "00", "along", "14", "to", "the", "2", "corner"}

	first := ExtractMapping(original, clean)
	second := ExtractMapping(original, clean)
	assert.Equal(t, first, second)
}

func TestPatternRoundTripIdempotence(t *testing.T) {
	// Reapplying a pattern-matched entry with its own clean value must
	// reproduce the original decorated text exactly.
	original := "N. 45°30' along Section 14 Township Two (2) NORTH corner,"
	clean := []string{"n", "45", "along", "14", "two", "2", "north", "corner"}

	mapping := ExtractMapping(original, clean)
	for _, entry := range mapping {
		if entry.Pattern == "" {
			continue
		}
		assert.Equal(t, entry.OriginalValue, Reapply(entry, entry.CleanValue),
			"pattern %s on %q", entry.Pattern, entry.OriginalValue)
	}
}

func TestCleanTokens(t *testing.T) {
	assert.Equal(t, []string{"n", "45", "e"}, CleanTokens("N. 45°30' E."))
	assert.Equal(t, []string{"4", "00"}, CleanTokens("4° 00'"))
	assert.Equal(t, []string{"lot", "2", "of", "the", "plat"}, CleanTokens("Lot (2) of the plat"))
	assert.Equal(t, []string{"in", "14", "3", "22"}, CleanTokens("in Section 14 Township 3 Range 22"))
	// Punctuation-only words drop out of the clean stream.
	assert.Equal(t, []string{"north", "boundary"}, CleanTokens("north — boundary"))
}

func TestCleanTokensRoundTrip(t *testing.T) {
	for _, original := range []string{
		"N. 45°30' along Section 14 to the (2) corner",
		"in Section 14 Township 3 Range 22",
		"4° 00' NORTH Quarter corner,",
	} {
		clean := CleanTokens(original)
		mapping := ExtractMapping(original, clean)
		rebuilt := RebuildText(strings.Join(clean, " "), mapping)
		assert.Equal(t, original, rebuilt, "round trip of %q", original)
	}
}

func TestRebuildReplacesHighestIndexFirst(t *testing.T) {
	original := "Section 14 at 4° mark"
	clean := "14 at 4 mark"
	mapping := ExtractMapping(original, strings.Fields(clean))

	// Token 0 grows from "15" to "Section 15" while token 2 is also
	// replaced; earlier offsets must not shift under later replacements.
	rebuilt := RebuildText("15 at 6 mark", mapping)
	assert.Equal(t, "Section 15 at 6° mark", rebuilt)
}

func TestRebuildRestoresUneditedTokens(t *testing.T) {
	original := "N. 4° 00'"
	clean := "n 4 00"
	mapping := ExtractMapping(original, strings.Fields(clean))

	rebuilt := RebuildText(clean, mapping)
	assert.Equal(t, original, rebuilt)
}

func TestLeftoverCleanTokensAreNotFatal(t *testing.T) {
	mapping := ExtractMapping("short text", []string{"short", "text", "extra", "tokens"})
	require.Len(t, mapping, 2)

	rebuilt := RebuildText("short text extra tokens", mapping)
	assert.Equal(t, "short text extra tokens", rebuilt)
}
