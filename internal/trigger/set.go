package trigger

import "fmt"

// Kind назначение триггера.
type Kind int

const (
	KindCorrection Kind = iota + 1
	KindClearBuffer
	KindDictation
)

func (k Kind) String() string {
	switch k {
	case KindCorrection:
		return "correction"
	case KindClearBuffer:
		return "clear-buffer"
	case KindDictation:
		return "dictation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	DefaultCorrection  = "ctrl+space"
	DefaultClearBuffer = "ctrl+shift+delete"
	DefaultDictation   = "ctrl+shift+d"
)

// Set три взаимно непересекающихся триггера. ClearBuffer может быть пустым (отключён).
type Set struct {
	Correction  Combo
	ClearBuffer Combo
	Dictation   Combo
}

// DefaultSet набор по умолчанию.
func DefaultSet() Set {
	return Set{
		Correction:  MustNormalize(DefaultCorrection),
		ClearBuffer: MustNormalize(DefaultClearBuffer),
		Dictation:   MustNormalize(DefaultDictation),
	}
}

// Get возвращает триггер по назначению.
func (s Set) Get(k Kind) Combo {
	switch k {
	case KindCorrection:
		return s.Correction
	case KindClearBuffer:
		return s.ClearBuffer
	case KindDictation:
		return s.Dictation
	}
	return Combo{}
}

// Validate проверяет обязательность и попарную уникальность.
func (s Set) Validate() error {
	if s.Correction.IsZero() {
		return fmt.Errorf("%w: correction trigger is required", ErrInvalid)
	}
	if s.Dictation.IsZero() {
		return fmt.Errorf("%w: dictation trigger is required", ErrInvalid)
	}
	if s.Correction.Equal(s.Dictation) {
		return fmt.Errorf("%w: correction and dictation both %q", ErrCollision, s.Correction)
	}
	if !s.ClearBuffer.IsZero() {
		if s.ClearBuffer.Equal(s.Correction) {
			return fmt.Errorf("%w: clear-buffer and correction both %q", ErrCollision, s.ClearBuffer)
		}
		if s.ClearBuffer.Equal(s.Dictation) {
			return fmt.Errorf("%w: clear-buffer and dictation both %q", ErrCollision, s.ClearBuffer)
		}
	}
	return nil
}

// With возвращает копию набора с заменённым триггером. Приёмник не меняется;
// при ошибке возвращается исходный набор. Пустая строка допустима только для clear-buffer.
func (s Set) With(k Kind, raw string) (Set, error) {
	var c Combo
	if raw != "" {
		var ok bool
		c, ok = Normalize(raw)
		if !ok {
			return s, fmt.Errorf("%w: %q", ErrInvalid, raw)
		}
	} else if k != KindClearBuffer {
		return s, fmt.Errorf("%w: %s trigger cannot be empty", ErrInvalid, k)
	}

	next := s
	switch k {
	case KindCorrection:
		next.Correction = c
	case KindClearBuffer:
		next.ClearBuffer = c
	case KindDictation:
		next.Dictation = c
	default:
		return s, fmt.Errorf("%w: unknown trigger kind %s", ErrInvalid, k)
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// NewSet собирает набор из трёх строк сразу, без промежуточных состояний:
// обмен двух триггеров местами не считается пересечением.
func NewSet(correction, clearBuffer, dictation string) (Set, error) {
	var s Set
	for _, f := range []struct {
		kind Kind
		raw  string
		dst  *Combo
	}{
		{KindCorrection, correction, &s.Correction},
		{KindClearBuffer, clearBuffer, &s.ClearBuffer},
		{KindDictation, dictation, &s.Dictation},
	} {
		if f.raw == "" {
			continue
		}
		c, ok := Normalize(f.raw)
		if !ok {
			return Set{}, fmt.Errorf("%w: %s trigger %q", ErrInvalid, f.kind, f.raw)
		}
		*f.dst = c
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}
