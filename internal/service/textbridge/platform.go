package textbridge

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported платформа не даёт доступа к чужим окнам.
var ErrUnsupported = errors.New("textbridge: platform not supported")

// Chord синтетическое сочетание, отправляемое в активное окно.
type Chord int

const (
	ChordSelectAll Chord = iota + 1 // Ctrl+A
	ChordCopy                       // Ctrl+C
	ChordPaste                      // Ctrl+V
)

func (c Chord) String() string {
	switch c {
	case ChordSelectAll:
		return "ctrl+a"
	case ChordCopy:
		return "ctrl+c"
	case ChordPaste:
		return "ctrl+v"
	}
	return "unknown"
}

// Platform единственная платформенно-зависимая поверхность моста.
// Дескрипторы непрозрачны; 0 — «нет окна».
type Platform interface {
	Foreground() (uintptr, error)
	Focused() (uintptr, error)
	IsWindow(h uintptr) bool
	RestoreFocus(window, control uintptr) error
	SendChord(c Chord) error

	// ClipboardText ok=false — в буфере обмена нет текста.
	ClipboardText() (text string, ok bool, err error)
	SetClipboardText(text string) error
	EmptyClipboard() error

	// EditableDescendants обход потомков окна в глубину, только редактируемые контролы.
	EditableDescendants(window uintptr) ([]uintptr, error)
	ControlText(h uintptr) (string, error)
	SetControlText(h uintptr, text string) error
}

// TitleHeuristic отсеивает чтения, похожие на заголовок окна, а не на содержимое.
// Эвристика настраиваемая, пороги не являются гарантией.
type TitleHeuristic struct {
	MaxLen   int
	Patterns []string
}

// DefaultTitleHeuristic значения по умолчанию.
func DefaultTitleHeuristic() TitleHeuristic {
	return TitleHeuristic{
		MaxLen:   100,
		Patterns: []string{" - Notepad", " - Word", " - Chrome", " - Firefox", " - Microsoft", "Untitled"},
	}
}

// LooksLikeTitle короткий однострочный текст с типичным суффиксом приложения.
func (h TitleHeuristic) LooksLikeTitle(text string) bool {
	if text == "" || utf8.RuneCountInString(text) >= h.MaxLen || strings.Contains(text, "\n") {
		return false
	}
	for _, p := range h.Patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
