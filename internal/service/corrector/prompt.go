package corrector

import (
	"strings"
	"unicode"
)

// BuildPrompt промпт для варианта index с заданным стилем.
// Первый вариант получает FirstHint, остальные — VariationHint.
func BuildPrompt(text string, tone Tone, index int) string {
	p := tone.Preset()
	if !p.Rewrite {
		guidance := strings.Join([]string{
			"You are a text autocorrect engine.",
			p.Instruction,
			p.VariationHint,
			"Return ONLY the corrected text, no explanations or quotes.",
		}, "\n")
		return guidance + "\n\nInput: " + text + "\n\nCorrected:"
	}

	lines := []string{"You are a text rewriting engine.", p.Instruction}
	extra := p.FirstHint
	if index > 0 {
		extra = p.VariationHint
	}
	if extra != "" {
		lines = append(lines, extra)
	}
	lines = append(lines,
		"Preserve the original meaning, factual details, and intent.",
		"Return ONLY the rewritten text, no explanations or quotes.",
	)
	return strings.Join(lines, "\n") + "\n\nInput: " + text + "\n\nRewritten:"
}

var boilerplatePrefixes = []string{
	"here is the corrected text:",
	"here's the corrected text:",
	"corrected text:",
	"corrected version:",
	"corrected:",
	"rewritten:",
	"output:",
	"result:",
	"fixed:",
	"here is:",
	"here's:",
}

// CleanResponse убирает обрамляющие кавычки, служебные префиксы и markdown-блок.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		s = s[1 : len(s)-1]
	}

	lower := strings.ToLower(s)
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}

	if len(s) >= 6 && strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[3 : len(s)-3])
		// строка с языком блока
		if first, rest, ok := strings.Cut(s, "\n"); ok && isWord(strings.TrimSpace(first)) {
			s = strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(s)
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
