package orchestrator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/service/textbridge"
)

// session живёт только в Pending и Selecting.
type session struct {
	token   uint64
	window  uintptr
	control textbridge.Control

	region string // исходная дельта вместе с пробелами по краям
	prefix string // всё, что до дельты
	suffix string

	candidates []corrector.Candidate
	index      int    // выбранный вариант
	shown      int    // вариант, который сейчас в окне
	displayed  string // последний успешно записанный полный текст
}

// render полный текст окна с вариантом i на месте дельты.
func (s *session) render(i int) string {
	lead, trail := edgeSpace(s.region)
	return s.prefix + lead + s.candidates[i].Text + trail + s.suffix
}

// delta часть текста после принятого baseline. При несовпадении префикса —
// весь текст, baseline сбрасывается.
func delta(text, baseline string) (d string, keepBaseline bool) {
	if baseline == "" {
		return text, false
	}
	if strings.HasPrefix(text, baseline) {
		return text[len(baseline):], true
	}
	return text, false
}

func edgeSpace(s string) (lead, trail string) {
	trimmedLeft := strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(trimmedLeft)]
	if trimmedLeft == "" {
		return lead, ""
	}
	trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	trail = trimmedLeft[len(trimmed):]
	return lead, trail
}

// unique пустые и повторяющиеся (после trim) варианты отбрасываются, порядок сохраняется.
func unique(in []corrector.Candidate) []corrector.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]corrector.Candidate, 0, len(in))
	for _, c := range in {
		t := strings.TrimSpace(c.Text)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		c.Text = t
		out = append(out, c)
	}
	return out
}

func dropLastRune(s string) string {
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= 80 {
		return s
	}
	return string([]rune(s)[:80]) + "..."
}
