package trigger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Ctrl+Space", "ctrl+space", true},
		{"control+shift+d", "ctrl+shift+d", true},
		{"shift+ctrl+D", "ctrl+shift+d", true},
		{"alt+ctrl+shift+f5", "ctrl+shift+alt+f5", true},
		{" ctrl + return ", "ctrl+enter", true},
		{"cmd+option+PageUp", "ctrl+alt+page up", true},
		{"ctrl+ctrl+a", "ctrl+a", true},
		{"ctrl+del", "ctrl+delete", true},
		{"ctrl+shift+bracketleft", "ctrl+shift+[", true},
		{"tab", "tab", true},
		{"f24", "f24", true},
		{"F12", "f12", true},
		{"", "", false},
		{"ctrl", "", false},
		{"ctrl+shift", "", false},
		{"ctrl+a+b", "", false},
		{"ctrl+banana", "", false},
		{"f25", "", false},
		{"f0", "", false},
		{"ctrl+!", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := Normalize(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Ctrl+Space", "control+shift+d", "alt+shift+ctrl+x", "Escape", "meta+comma",
		"shift+print_screen", "ctrl+scrolllock", "ctrl+alt+9", "option+grave",
	}
	for _, raw := range inputs {
		first, ok := Normalize(raw)
		require.True(t, ok, raw)
		second, ok := Normalize(first.String())
		require.True(t, ok, raw)
		assert.Equal(t, first, second, raw)
		assert.True(t, first.Equal(second))
	}
}

func TestComboMatches(t *testing.T) {
	c := MustNormalize("ctrl+shift+d")
	assert.True(t, c.Matches("d", ModCtrl|ModShift))
	assert.False(t, c.Matches("d", ModCtrl))
	assert.False(t, c.Matches("d", ModCtrl|ModShift|ModAlt))
	assert.False(t, c.Matches("e", ModCtrl|ModShift))
	assert.False(t, Combo{}.Matches("", 0))
}

func TestSetWithRejectsCollision(t *testing.T) {
	s := DefaultSet()
	require.NoError(t, s.Validate())

	next, err := s.With(KindCorrection, "Control+Shift+D")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollision))
	assert.Equal(t, s, next)
	assert.Equal(t, "ctrl+space", s.Correction.String())

	_, err = s.With(KindDictation, "ctrl+shift+del")
	assert.ErrorIs(t, err, ErrCollision)

	_, err = s.With(KindClearBuffer, "ctrl+SPACEBAR")
	assert.ErrorIs(t, err, ErrCollision)
}

func TestSetWith(t *testing.T) {
	s := DefaultSet()

	next, err := s.With(KindCorrection, "ctrl+shift+space")
	require.NoError(t, err)
	assert.Equal(t, "ctrl+shift+space", next.Correction.String())
	assert.Equal(t, "ctrl+space", s.Correction.String())

	next, err = next.With(KindClearBuffer, "")
	require.NoError(t, err)
	assert.True(t, next.ClearBuffer.IsZero())

	_, err = next.With(KindDictation, "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = next.With(KindCorrection, "ctrl+nope")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewSet(t *testing.T) {
	s, err := NewSet("ctrl+shift+d", "", "ctrl+space")
	require.NoError(t, err)
	assert.Equal(t, "ctrl+shift+d", s.Correction.String())
	assert.True(t, s.ClearBuffer.IsZero())

	_, err = NewSet("ctrl+space", "Control+Space", "ctrl+d")
	assert.ErrorIs(t, err, ErrCollision)

	_, err = NewSet("ctrl+", "", "ctrl+d")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewSet("", "", "ctrl+d")
	assert.ErrorIs(t, err, ErrInvalid)
}
