package model

// FormatEntry maps one clean (edit-friendly) token onto its originally
// decorated on-page representation. Pattern and Template are empty when no
// named formatting pattern matched the original value.
type FormatEntry struct {
	TokenIndex    int    `json:"token_index"`
	CleanValue    string `json:"clean_value"`
	OriginalValue string `json:"original_value"`
	Pattern       string `json:"pattern,omitempty"`
	Template      string `json:"template,omitempty"`
}

// FormatMapping is the ordered per-block token mapping. It is recomputed
// whenever the original/clean pairing changes and consumed transiently when
// reapplying formatting after an edit; it is never the system of record for
// content.
type FormatMapping []FormatEntry
