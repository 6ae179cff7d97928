package align

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/store"
)

// ErrAlignmentUnavailable is returned when no slot in the group produced
// usable text. Callers fall back to displaying plain reference text without
// confidence coloring.
var ErrAlignmentUnavailable = errors.New("align: no successful slots to align")

// Request describes one alignment run over a redundancy group.
type Request struct {
	Group []model.DraftSlot

	// ReferenceSlot anchors word positions. It names a SlotIndex; -1 picks
	// the first successful slot.
	ReferenceSlot int

	// ConsensusHint is a separately computed consensus text supplied by
	// the surrounding system. Where it disagrees with the reference, its
	// word is surfaced as an alternative with SourceSlot = ConsensusSource.
	ConsensusHint string
}

// Engine reconciles N independent drafts of the same document into a
// consensus text with per-word confidence and alternatives.
//
// Comparison is position-aligned: the engine does not re-align sequences by
// edit distance, so index drift from insertions or deletions degrades
// confidence for the remainder of the text. A sequence-alignment pass
// (Needleman-Wunsch over word tokens) would lift that limitation.
type Engine struct {
	resolver store.HeadResolver
	log      *logrus.Entry
}

func NewEngine(resolver store.HeadResolver) *Engine {
	return &Engine{
		resolver: resolver,
		log:      logrus.WithField("component", "align"),
	}
}

type resolvedSlot struct {
	slot   model.DraftSlot
	tokens []string
}

// Align resolves every successful slot's HEAD text at call time and produces
// the alignment result. Text is never taken from the slots themselves: a slot
// carries the engine output as produced, and trusting it would silently
// ignore any edit saved since. That holds for single-slot groups too.
func (e *Engine) Align(ctx context.Context, req Request) (model.AlignmentResult, error) {
	candidates := make([]model.DraftSlot, 0, len(req.Group))
	for _, slot := range req.Group {
		if slot.Success {
			candidates = append(candidates, slot)
		}
	}
	if len(candidates) == 0 {
		return model.AlignmentResult{}, ErrAlignmentUnavailable
	}

	// Slot reads are independent and read-only, so fetch them concurrently.
	texts := make([]string, len(candidates))
	errs := make([]error, len(candidates))
	var wg sync.WaitGroup
	for i, slot := range candidates {
		wg.Add(1)
		go func(i int, ref model.SlotRef) {
			defer wg.Done()
			texts[i], errs[i] = e.resolver.MaterializedHeadCopy(ctx, ref)
		}(i, slot.Ref())
	}
	wg.Wait()

	var slots []resolvedSlot
	for i, slot := range candidates {
		if errs[i] != nil {
			e.log.WithField("slot", slot.Ref().String()).WithError(errs[i]).Warn("excluding slot: head resolution failed")
			continue
		}
		slots = append(slots, resolvedSlot{slot: slot, tokens: strings.Fields(texts[i])})
	}
	if len(slots) == 0 {
		return model.AlignmentResult{}, ErrAlignmentUnavailable
	}

	refIdx := 0
	if req.ReferenceSlot >= 0 {
		for i, r := range slots {
			if r.slot.SlotIndex == req.ReferenceSlot {
				refIdx = i
				break
			}
		}
	}
	reference := slots[refIdx].tokens
	hintTokens := strings.Fields(req.ConsensusHint)

	words := make([]model.WordScore, 0, len(reference))
	consensus := make([]string, 0, len(reference))
	for i, refWord := range reference {
		ws := scoreWord(i, refWord, refIdx, slots)
		if i < len(hintTokens) && hintTokens[i] != refWord {
			ws.Alternatives = appendAlternative(ws.Alternatives, model.Alternative{
				Word:       hintTokens[i],
				SourceSlot: model.ConsensusSource,
				Confidence: ws.Confidence,
			})
		}
		words = append(words, ws)
		consensus = append(consensus, majorityWord(i, refWord, slots))
	}

	return model.AlignmentResult{
		ConsensusText: strings.Join(consensus, " "),
		Words:         words,
	}, nil
}

// scoreWord derives confidence at one position as the share of all
// successfully resolved slots agreeing with the reference: a draft that ends
// before the position counts as disagreement, the same as a differing word.
// A position present in exactly one slot has no observable disagreement and
// is high confidence.
func scoreWord(pos int, refWord string, refIdx int, slots []resolvedSlot) model.WordScore {
	present, agree := 0, 0
	var alternatives []model.Alternative
	for si, r := range slots {
		if pos >= len(r.tokens) {
			continue
		}
		present++
		if r.tokens[pos] == refWord {
			agree++
		} else if si != refIdx {
			alternatives = appendAlternative(alternatives, model.Alternative{
				Word:       r.tokens[pos],
				SourceSlot: r.slot.SlotIndex,
			})
		}
	}

	confidence := 1.0
	if present > 1 {
		confidence = float64(agree) / float64(len(slots))
	}
	for i := range alternatives {
		alternatives[i].Confidence = wordShare(pos, alternatives[i].Word, slots)
	}
	return model.WordScore{
		Position:     pos,
		Word:         refWord,
		Confidence:   confidence,
		Level:        model.Level(confidence),
		Alternatives: alternatives,
	}
}

func wordShare(pos int, word string, slots []resolvedSlot) float64 {
	if len(slots) == 0 {
		return 0
	}
	count := 0
	for _, r := range slots {
		if pos < len(r.tokens) && r.tokens[pos] == word {
			count++
		}
	}
	return float64(count) / float64(len(slots))
}

// majorityWord picks the most frequent word at a position; ties break to the
// reference word.
func majorityWord(pos int, refWord string, slots []resolvedSlot) string {
	counts := map[string]int{}
	order := []string{}
	for _, r := range slots {
		if pos >= len(r.tokens) {
			continue
		}
		w := r.tokens[pos]
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}
	best, bestCount := refWord, counts[refWord]
	for _, w := range order {
		if counts[w] > bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best
}

// appendAlternative deduplicates by literal word value, keeping the first
// source encountered (slot order).
func appendAlternative(alts []model.Alternative, alt model.Alternative) []model.Alternative {
	for _, a := range alts {
		if a.Word == alt.Word {
			return alts
		}
	}
	return append(alts, alt)
}
