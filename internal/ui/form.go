package ui

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/litescript/ls-fresnel/internal/network"
)

type formField int

const (
	fieldName formField = iota
	fieldFreq
)

type formAction int

const (
	formNone formAction = iota
	formSave
	formDelete
	formCancel
)

// maxFieldLen bounds field input so the form keeps its shape.
const maxFieldLen = 32

// EditForm edits one tower's name and frequency.
type EditForm struct {
	towerID string
	name    textinput.Model
	freq    textinput.Model
	focus   formField
}

func newEditForm(t network.Tower) *EditForm {
	f := &EditForm{
		towerID: t.ID,
		name:    newFieldInput("Name:            ", t.Name),
		freq:    newFieldInput("Frequency (GHz): ", strconv.FormatFloat(t.FrequencyGHz, 'f', -1, 64)),
	}
	f.setFocus(fieldName)
	return f
}

func newFieldInput(label, value string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = label
	ti.PromptStyle = dimStyle
	ti.TextStyle = fieldStyle
	ti.CharLimit = maxFieldLen
	// Blink messages never reach the form, so the cursor stays solid.
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.SetValue(value)
	ti.CursorEnd()
	return ti
}

// TowerID returns the tower being edited.
func (f *EditForm) TowerID() string {
	return f.towerID
}

// Name returns the name field.
func (f *EditForm) Name() string {
	return f.name.Value()
}

// Frequency parses the frequency field. Unparseable input yields 0, which
// the network rejects as an invalid frequency.
func (f *EditForm) Frequency() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(f.freq.Value()), 64)
	if err != nil {
		return 0
	}
	return v
}

// HandleKey applies a key press and reports what the form wants done.
func (f *EditForm) HandleKey(msg tea.KeyMsg) formAction {
	switch msg.Type {
	case tea.KeyEsc:
		return formCancel
	case tea.KeyEnter:
		return formSave
	case tea.KeyCtrlD:
		return formDelete
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if f.focus == fieldName {
			f.setFocus(fieldFreq)
		} else {
			f.setFocus(fieldName)
		}
		return formNone
	}

	if f.focus == fieldFreq {
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			msg.Runes = frequencyRunes(msg.Runes)
			if len(msg.Runes) == 0 {
				return formNone
			}
			msg.Type = tea.KeyRunes
		}
		f.freq, _ = f.freq.Update(msg)
	} else {
		f.name, _ = f.name.Update(msg)
	}
	return formNone
}

func (f *EditForm) setFocus(field formField) {
	f.focus = field
	if field == fieldFreq {
		f.name.Blur()
		f.name.TextStyle = fieldStyle
		f.freq.Focus()
		f.freq.TextStyle = fieldFocusedStyle
		return
	}
	f.freq.Blur()
	f.freq.TextStyle = fieldStyle
	f.name.Focus()
	f.name.TextStyle = fieldFocusedStyle
}

// frequencyRunes keeps only digits and the decimal point.
func frequencyRunes(rs []rune) []rune {
	out := rs[:0:0]
	for _, r := range rs {
		if unicode.IsDigit(r) || r == '.' {
			out = append(out, r)
		}
	}
	return out
}

// View renders the form box.
func (f *EditForm) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Edit Tower " + f.towerID))
	b.WriteString("\n")
	b.WriteString(f.name.View())
	b.WriteString("\n")
	b.WriteString(f.freq.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("tab: field | enter: save | ctrl+d: delete | esc: cancel"))
	return formStyle.Render(b.String())
}
