package corrector

import (
	"fmt"
	"math"
	"strings"
)

// MaxCandidates верхняя граница вариантов на один запрос.
const MaxCandidates = 5

// Tone пресет стиля для одного варианта.
type Tone int

const (
	ToneOriginal Tone = iota
	ToneProfessional
	ToneFormal
	ToneInformal
	ToneDetailed
	ToneCreative
)

// Preset данные пресета: инструкция для модели и подсказки для вариаций.
type Preset struct {
	Key           string
	Label         string
	Description   string
	Rewrite       bool // false — только исправление ошибок, формулировки не трогаем
	Instruction   string
	VariationHint string
	FirstHint     string
}

var presets = [...]Preset{
	ToneOriginal: {
		Key:           "original",
		Label:         "Original (Minimal change)",
		Description:   "Fix grammar, spelling, and punctuation without changing the author's voice.",
		Instruction:   "Fix ONLY grammar, spelling, and punctuation errors. Do not introduce new wording. Preserve the writer's tone exactly.",
		VariationHint: "Keep the user's phrasing intact and only repair mistakes.",
	},
	ToneProfessional: {
		Key:           "professional",
		Label:         "Professional",
		Description:   "Confident, concise tone appropriate for workplace communication.",
		Rewrite:       true,
		Instruction:   "Rewrite the passage so it sounds professional, confident, and precise while preserving its meaning.",
		VariationHint: "Keep it polished and direct while ensuring it feels distinct from other variants.",
		FirstHint:     "Focus on clarity and impact suitable for executives or clients.",
	},
	ToneFormal: {
		Key:           "formal",
		Label:         "Formal",
		Description:   "Polished tone suitable for reports, policies, or academic writing.",
		Rewrite:       true,
		Instruction:   "Rewrite with a formal, polished tone that favors precise, structured sentences.",
		VariationHint: "Maintain courtesy and structure appropriate for official documents.",
		FirstHint:     "Avoid contractions and keep the language refined.",
	},
	ToneInformal: {
		Key:           "informal",
		Label:         "Informal",
		Description:   "Relaxed, conversational voice ideal for casual updates.",
		Rewrite:       true,
		Instruction:   "Rewrite in an informal, conversational tone that feels natural and approachable.",
		VariationHint: "Keep it easy-going and friendly while staying true to the facts.",
		FirstHint:     "Use simple phrasing and contractions where natural.",
	},
	ToneDetailed: {
		Key:         "detailed",
		Label:       "Detailed",
		Description: "Enhance clarity with moderate elaboration and proper formatting.",
		Rewrite:     true,
		Instruction: "Refine and enhance the content with moderate elaboration. Add relevant context and clarifications where needed to improve understanding. " +
			"Use bullet points or structured formatting only when it genuinely improves clarity. Keep the output well-organized and moderately detailed, not verbose or redundant.",
		VariationHint: "Strike a balance between clarity and conciseness while adding helpful structure.",
		FirstHint:     "Enhance the content with just enough detail and formatting to improve readability.",
	},
	ToneCreative: {
		Key:           "creative",
		Label:         "Creative",
		Description:   "Expressive tone with vibrant wording and varied rhythm.",
		Rewrite:       true,
		Instruction:   "Rewrite with vivid, creative language while respecting the original meaning and details.",
		VariationHint: "Experiment with expressive phrasing and rhythm to keep it fresh.",
		FirstHint:     "Introduce interesting cadence or imagery while staying clear.",
	},
}

func (t Tone) Valid() bool { return t >= ToneOriginal && t <= ToneCreative }

func (t Tone) Preset() Preset {
	if !t.Valid() {
		return presets[ToneOriginal]
	}
	return presets[t]
}

func (t Tone) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tone(%d)", int(t))
	}
	return presets[t].Key
}

// ParseTone принимает ключ пресета в любом регистре.
func ParseTone(s string) (Tone, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, p := range presets {
		if p.Key == key {
			return Tone(i), true
		}
	}
	return ToneOriginal, false
}

// Tones все пресеты в порядке объявления.
func Tones() []Tone {
	out := make([]Tone, 0, len(presets))
	for i := range presets {
		out = append(out, Tone(i))
	}
	return out
}

func (t Tone) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tone) UnmarshalText(b []byte) error {
	v, ok := ParseTone(string(b))
	if !ok {
		return fmt.Errorf("unknown tone %q", string(b))
	}
	*t = v
	return nil
}

// CandidateSetting стиль и температура одного варианта.
type CandidateSetting struct {
	Tone        Tone    `yaml:"tone"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultSettings пять вариантов от минимальной правки к развёрнутому тексту.
func DefaultSettings() []CandidateSetting {
	return []CandidateSetting{
		{Tone: ToneOriginal, Temperature: 0.30},
		{Tone: ToneProfessional, Temperature: 0.55},
		{Tone: ToneFormal, Temperature: 0.60},
		{Tone: ToneInformal, Temperature: 0.65},
		{Tone: ToneDetailed, Temperature: 0.70},
	}
}

// NormalizeSettings всегда возвращает MaxCandidates записей: недостающие берутся из
// значений по умолчанию, температура обрезается до [0,1] с точностью 0.01,
// неизвестный стиль заменяется стилем по умолчанию для этой позиции.
func NormalizeSettings(in []CandidateSetting) []CandidateSetting {
	out := DefaultSettings()
	for i := 0; i < MaxCandidates && i < len(in); i++ {
		s := in[i]
		if !s.Tone.Valid() {
			s.Tone = out[i].Tone
		}
		if math.IsNaN(s.Temperature) {
			s.Temperature = out[i].Temperature
		}
		s.Temperature = math.Max(0, math.Min(1, math.Round(s.Temperature*100)/100))
		out[i] = s
	}
	return out
}

// ClampCount приводит число вариантов к 1..MaxCandidates.
func ClampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCandidates {
		return MaxCandidates
	}
	return n
}
