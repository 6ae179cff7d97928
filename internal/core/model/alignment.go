package model

// ConfidenceLevel buckets an agreement ratio for display purposes.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"

	HighThreshold   = 0.8
	MediumThreshold = 0.5
)

// Level maps a confidence value in [0,1] onto its display bucket.
func Level(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= HighThreshold:
		return ConfidenceHigh
	case confidence >= MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ConsensusSource marks an alternative that came from a separately computed
// consensus text rather than from a numbered slot.
const ConsensusSource = -1

// Alternative is a differing reading for one word position.
type Alternative struct {
	Word       string  `json:"word"`
	SourceSlot int     `json:"source_slot"`
	Confidence float64 `json:"confidence"`
}

// WordScore carries the per-position output of the alignment engine.
type WordScore struct {
	Position     int             `json:"position"`
	Word         string          `json:"word"`
	Confidence   float64         `json:"confidence"`
	Level        ConfidenceLevel `json:"level"`
	Alternatives []Alternative   `json:"alternatives,omitempty"`
}

// AlignmentResult is derived from the HEAD-resolved slot texts at call time.
// It is never persisted as the document of record.
type AlignmentResult struct {
	ConsensusText string      `json:"consensus_text"`
	Words         []WordScore `json:"words"`
}
