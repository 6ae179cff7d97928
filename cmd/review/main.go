// Command review is a terminal front-end for proofreading one transcription:
// it shows the draft with per-word confidence coloring, gates editing of
// flagged words behind an explicit unlock, cycles alternative readings, and
// drives save/revert through the version store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/align"
	"github.com/agenthands/scrivener/internal/core/model"
	"github.com/agenthands/scrivener/internal/core/session"
	"github.com/agenthands/scrivener/internal/dossier"
	"github.com/agenthands/scrivener/internal/store"
)

var (
	highStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	lowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	lockedStyle = lipgloss.NewStyle().Underline(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

type uiMode int

const (
	modeView uiMode = iota
	modeEdit
	modeConfirmRevert
)

type alignmentMsg struct {
	generation uint64
	result     model.AlignmentResult
	err        error
}

type savedMsg struct{ err error }

type revertedMsg struct{ err error }

type reviewModel struct {
	sess  *session.Session
	align *align.Engine
	group model.RedundancyGroup

	mode    uiMode
	cursor  int
	altPick map[int]int // cursor position -> index of last cycled alternative
	input   textinput.Model
	status  string
	width   int
}

func newReviewModel(sess *session.Session, engine *align.Engine, group model.RedundancyGroup) reviewModel {
	ti := textinput.New()
	ti.CharLimit = 120
	return reviewModel{
		sess:    sess,
		align:   engine,
		group:   group,
		altPick: map[int]int{},
		input:   ti,
		status:  "loading alignment...",
	}
}

func (m reviewModel) fetchAlignment() tea.Cmd {
	generation := m.sess.Generation()
	return func() tea.Msg {
		result, err := m.align.Align(context.Background(), align.Request{
			Group:         m.group.Slots,
			ReferenceSlot: -1,
		})
		return alignmentMsg{generation: generation, result: result, err: err}
	}
}

func (m reviewModel) Init() tea.Cmd {
	return m.fetchAlignment()
}

func (m reviewModel) tokens() []string {
	return strings.Fields(m.sess.Content())
}

func (m reviewModel) wordAt(pos int) (model.WordScore, bool) {
	for _, w := range m.sess.Words() {
		if w.Position == pos {
			return w, true
		}
	}
	return model.WordScore{}, false
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case alignmentMsg:
		if msg.err != nil {
			m.status = "alignment unavailable; showing plain text"
			return m, nil
		}
		if m.sess.ApplyAlignment(msg.generation, msg.result) {
			m.status = "alignment loaded"
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = "save FAILED, changes not persisted: " + msg.err.Error()
			return m, nil
		}
		m.status = "saved"
		return m, m.fetchAlignment()

	case revertedMsg:
		if msg.err != nil {
			m.status = "revert failed, document unchanged: " + msg.err.Error()
			return m, nil
		}
		m.cursor = 0
		m.altPick = map[int]int{}
		m.status = "reverted to original"
		return m, m.fetchAlignment()

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirmRevert:
			return m.updateConfirm(msg)
		default:
			return m.updateView(msg)
		}
	}
	return m, nil
}

func (m reviewModel) updateView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tokens := m.tokens()

	switch msg.String() {
	case "q", "ctrl+c":
		m.sess.Close()
		return m, tea.Quit

	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}

	case "right", "l":
		if m.cursor < len(tokens)-1 {
			m.cursor++
		}

	case "u":
		m.sess.Unlock(m.cursor)
		m.status = fmt.Sprintf("word %d unlocked", m.cursor)

	case "a":
		w, ok := m.wordAt(m.cursor)
		if !ok || len(w.Alternatives) == 0 {
			m.status = "no alternatives for this word"
			break
		}
		pick := m.altPick[m.cursor] % len(w.Alternatives)
		alt := w.Alternatives[pick]
		m.altPick[m.cursor] = pick + 1
		if err := m.sess.AcceptAlternative(m.cursor, alt.Word); err != nil {
			m.status = err.Error()
			break
		}
		m.status = fmt.Sprintf("accepted %q", alt.Word)

	case "enter", "e":
		if m.cursor >= len(tokens) {
			break
		}
		if !m.sess.Editable(m.cursor) {
			m.status = "word is locked; press u to unlock"
			break
		}
		m.mode = modeEdit
		m.input.SetValue(tokens[m.cursor])
		m.input.CursorEnd()
		m.input.Focus()

	case "s":
		return m, func() tea.Msg {
			return savedMsg{err: m.sess.Save(context.Background())}
		}

	case "r":
		needs, err := m.sess.NeedsRevertConfirmation(context.Background())
		if err != nil {
			m.status = err.Error()
			break
		}
		if needs {
			m.mode = modeConfirmRevert
			break
		}
		return m, m.revertCmd(true)
	}
	return m, nil
}

func (m reviewModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeView
		m.input.Blur()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		m.mode = modeView
		m.input.Blur()
		if value == "" {
			m.status = "empty value discarded"
			return m, nil
		}
		if err := m.sess.EditWordFormatted(m.cursor, value); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("word %d changed", m.cursor)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m reviewModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = modeView
		return m, m.revertCmd(true)
	case "n", "N", "esc":
		m.mode = modeView
		m.status = "revert cancelled"
	}
	return m, nil
}

func (m reviewModel) revertCmd(confirmed bool) tea.Cmd {
	return func() tea.Msg {
		return revertedMsg{err: m.sess.Revert(context.Background(), false, confirmed)}
	}
}

func (m reviewModel) renderWord(pos int, word string) string {
	style := lipgloss.NewStyle()
	if w, ok := m.wordAt(pos); ok {
		switch w.Level {
		case model.ConfidenceHigh:
			style = highStyle
		case model.ConfidenceMedium:
			style = mediumStyle
		case model.ConfidenceLow:
			style = lowStyle
		}
		if !m.sess.Editable(pos) {
			style = style.Inherit(lockedStyle)
		}
	}
	if pos == m.cursor {
		style = style.Inherit(cursorStyle)
	}
	return style.Render(word)
}

func (m reviewModel) View() string {
	var b strings.Builder

	ref := m.sess.Ref()
	b.WriteString(titleStyle.Render(fmt.Sprintf("Reviewing %s / %s", ref.DossierID, ref.TranscriptionID)))
	b.WriteString("\n\n")

	tokens := m.tokens()
	rendered := make([]string, len(tokens))
	for i, tok := range tokens {
		rendered[i] = m.renderWord(i, tok)
	}
	b.WriteString(strings.Join(rendered, " "))
	b.WriteString("\n\n")

	if w, ok := m.wordAt(m.cursor); ok && len(w.Alternatives) > 0 {
		alts := make([]string, len(w.Alternatives))
		for i, a := range w.Alternatives {
			alts[i] = fmt.Sprintf("%s (%.0f%%)", a.Word, a.Confidence*100)
		}
		b.WriteString(statusStyle.Render("alternatives: " + strings.Join(alts, ", ")))
		b.WriteString("\n")
	}

	switch m.mode {
	case modeEdit:
		b.WriteString("edit: " + m.input.View() + "\n")
	case modeConfirmRevert:
		b.WriteString(lowStyle.Render("Revert discards saved edits. Restore the original? [y/n]"))
		b.WriteString("\n")
	}

	dirty := ""
	if m.sess.HasUnsavedChanges() {
		dirty = " *"
	}
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("[%s%s] %s", m.sess.State(), dirty, m.status)))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render("←/→ move · e edit · u unlock · a alternative · s save · r revert · q quit"))
	return b.String()
}

func main() {
	var (
		dataRoot        = flag.String("data", "data/dossiers", "storage root")
		dossierID       = flag.String("dossier", "", "dossier ID")
		transcriptionID = flag.String("transcription", "", "transcription ID")
	)
	flag.Parse()

	if *dossierID == "" || *transcriptionID == "" {
		fmt.Fprintln(os.Stderr, "usage: review -dossier <id> -transcription <id> [-data <root>]")
		os.Exit(2)
	}

	// TUI output owns the terminal; keep log noise out of it.
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.ErrorLevel)

	st, err := store.NewFileStore(*dataRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	bus := dossier.NewBus()
	svc, err := dossier.NewService(*dataRoot, st, nil, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open dossier service: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	ref := model.SlotRef{DossierID: *dossierID, TranscriptionID: *transcriptionID}

	sess, err := session.Open(ctx, st, ref, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open session: %v\n", err)
		os.Exit(1)
	}

	group, err := svc.GroupFor(*dossierID, *transcriptionID)
	if err != nil {
		// No redundancy group: a single-slot group over this document still
		// lets the session render, just without cross-engine confidence.
		group = model.RedundancyGroup{
			DossierID: *dossierID,
			Slots: []model.DraftSlot{{
				DossierID:       *dossierID,
				TranscriptionID: *transcriptionID,
				Success:         true,
			}},
		}
	}

	p := tea.NewProgram(newReviewModel(sess, align.NewEngine(st), group), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running review: %v\n", err)
		os.Exit(1)
	}
}
