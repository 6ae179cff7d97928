package dossier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Export renders the dossier's stitched view in the requested format.
// Supported formats: text, json, markdown, html (markdown rendered through
// goldmark for the desktop webview). Returns the payload and its content
// type.
func (s *Service) Export(ctx context.Context, dossierID, format string) ([]byte, string, error) {
	d, err := s.GetDossier(dossierID)
	if err != nil {
		return nil, "", err
	}
	sections, err := s.StitchedView(ctx, dossierID)
	if err != nil {
		return nil, "", err
	}

	switch strings.ToLower(format) {
	case "", "text":
		var b strings.Builder
		for i, sec := range sections {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(sec.Text)
		}
		return []byte(b.String()), "text/plain; charset=utf-8", nil

	case "json":
		payload := struct {
			Dossier  Dossier   `json:"dossier"`
			Sections []Section `json:"sections"`
		}{Dossier: d, Sections: sections}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil

	case "markdown":
		return []byte(s.renderMarkdown(d, sections)), "text/markdown; charset=utf-8", nil

	case "html":
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(s.renderMarkdown(d, sections)), &buf); err != nil {
			return nil, "", fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), "text/html; charset=utf-8", nil

	default:
		return nil, "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (s *Service) renderMarkdown(d Dossier, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", d.Name)
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n## Document %d\n\n", sec.Position+1)
		b.WriteString(sec.Text)
		b.WriteString("\n")
	}
	return b.String()
}
