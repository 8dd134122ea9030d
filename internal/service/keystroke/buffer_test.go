package keystroke

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func typeText(b *Buffer, w uintptr, s string) {
	for _, r := range s {
		key := string(r)
		if r == ' ' {
			key = "space"
		}
		b.OnKey(w, key, false)
	}
}

func TestBackspace(t *testing.T) {
	b := New(Config{}, nil)
	typeText(b, 1, "hello")
	b.OnKey(1, "backspace", true)
	b.OnKey(1, "backspace", true)
	assert.Equal(t, "hel", b.Get(1))
}

func TestKeyMapping(t *testing.T) {
	b := New(Config{}, nil)
	b.OnKey(1, "a", false)
	b.OnKey(1, "space", false)
	b.OnKey(1, "left shift", false)
	b.OnKey(1, "f5", false)
	b.OnKey(1, "left", false)
	b.OnKey(1, "enter", false)
	b.OnKey(1, "tab", false)
	b.OnKey(1, "unknown key", false)
	b.OnKey(1, "ж", false)
	assert.Equal(t, "a \n\tж", b.Get(1))
}

func TestCapKeepsMostRecent(t *testing.T) {
	b := New(Config{MaxChars: 5}, nil)
	typeText(b, 1, "abcdefgh")
	assert.Equal(t, "defgh", b.Get(1))

	b.AddText(1, "xyz")
	assert.Equal(t, "ghxyz", b.Get(1))

	b.Set(1, strings.Repeat("q", 9))
	assert.Equal(t, "qqqqq", b.Get(1))
}

func TestLRUEviction(t *testing.T) {
	b := New(Config{MaxWindows: 3}, nil)
	typeText(b, 1, "one")
	typeText(b, 2, "two")
	typeText(b, 3, "three")
	typeText(b, 1, "!")
	typeText(b, 4, "four")

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, "", b.Get(2))
	assert.Equal(t, "one!", b.Get(1))
	assert.Equal(t, "four", b.Get(4))
}

func TestEvictionKeepsFocusedWindow(t *testing.T) {
	b := New(Config{MaxWindows: 2, CleanupInterval: time.Hour}, nil)
	typeText(b, 1, "focused")
	b.Focus(1)
	typeText(b, 2, "b")
	typeText(b, 3, "c")

	assert.Equal(t, "focused", b.Get(1))
	assert.Equal(t, "", b.Get(2))
	assert.Equal(t, "c", b.Get(3))
}

func TestUnknownWindowIsSilent(t *testing.T) {
	b := New(Config{}, nil)
	assert.Equal(t, "", b.Get(42))
	b.Clear(42)
	b.ResetOnNavigation(42)
	b.OnKey(0, "a", false)
	assert.False(t, b.Stale(42))
	assert.Equal(t, 0, b.Len())
}

func TestNavigationMarksStaleWithoutClearing(t *testing.T) {
	b := New(Config{}, nil)
	typeText(b, 7, "abc")
	b.ResetOnNavigation(7)
	assert.True(t, b.Stale(7))
	assert.Equal(t, "abc", b.Get(7))

	b.Set(7, "synced")
	assert.False(t, b.Stale(7))

	b.Clear(7)
	assert.Equal(t, "", b.Get(7))
}
