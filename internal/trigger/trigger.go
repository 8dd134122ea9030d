package trigger

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalid строка не распознаётся как сочетание клавиш.
	ErrInvalid = errors.New("trigger: invalid key combination")
	// ErrCollision сочетание совпадает с другим настроенным триггером.
	ErrCollision = errors.New("trigger: combination already used by another trigger")
)

// Modifiers набор зажатых модификаторов.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModShift
	ModAlt
)

func (m Modifiers) Has(f Modifiers) bool { return m&f == f }

// Порядок модификаторов в канонической форме.
var modifierOrder = []struct {
	flag Modifiers
	name string
}{
	{ModCtrl, "ctrl"},
	{ModShift, "shift"},
	{ModAlt, "alt"},
}

var modifierAliases = map[string]Modifiers{
	"ctrl":      ModCtrl,
	"control":   ModCtrl,
	"control_l": ModCtrl,
	"control_r": ModCtrl,
	"ctrl_l":    ModCtrl,
	"ctrl_r":    ModCtrl,
	"command":   ModCtrl,
	"cmd":       ModCtrl,
	"shift":     ModShift,
	"shift_l":   ModShift,
	"shift_r":   ModShift,
	"alt":       ModAlt,
	"alt_l":     ModAlt,
	"alt_r":     ModAlt,
	"option":    ModAlt,
	"option_l":  ModAlt,
	"option_r":  ModAlt,
	"meta":      ModAlt,
	"meta_l":    ModAlt,
	"meta_r":    ModAlt,
}

var keyAliases = map[string]string{
	"return":       "enter",
	"escape":       "esc",
	"spacebar":     "space",
	"del":          "delete",
	"ins":          "insert",
	"caps_lock":    "caps lock",
	"capslock":     "caps lock",
	"page_up":      "page up",
	"pageup":       "page up",
	"prior":        "page up",
	"page_down":    "page down",
	"pagedown":     "page down",
	"next":         "page down",
	"minus":        "-",
	"equal":        "=",
	"comma":        ",",
	"period":       ".",
	"slash":        "/",
	"backslash":    "\\",
	"bracketleft":  "[",
	"bracketright": "]",
	"semicolon":    ";",
	"apostrophe":   "'",
	"grave":        "`",
	"print":        "print screen",
	"print_screen": "print screen",
	"scroll_lock":  "scroll lock",
	"scrolllock":   "scroll lock",
	"break":        "pause",
	"num_lock":     "num lock",
	"numlock":      "num lock",
}

var namedBaseKeys = map[string]struct{}{
	"enter": {}, "esc": {}, "space": {}, "backspace": {}, "delete": {}, "insert": {},
	"tab": {}, "caps lock": {}, "page up": {}, "page down": {}, "home": {}, "end": {},
	"up": {}, "down": {}, "left": {}, "right": {}, "print screen": {}, "scroll lock": {},
	"pause": {}, "num lock": {},
	"-": {}, "=": {}, ",": {}, ".": {}, "/": {}, "\\": {}, "[": {}, "]": {}, ";": {}, "'": {}, "`": {},
}

// Combo каноническое сочетание: модификаторы + ровно одна основная клавиша.
// Нулевое значение — «триггер не задан».
type Combo struct {
	Mods Modifiers
	Key  string
}

// IsZero сообщает, что сочетание не задано.
func (c Combo) IsZero() bool { return c.Key == "" }

// String возвращает каноническую форму вида ctrl+shift+<key>.
func (c Combo) String() string {
	if c.IsZero() {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, m := range modifierOrder {
		if c.Mods.Has(m.flag) {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

// Equal сравнивает по канонической строке.
func (c Combo) Equal(o Combo) bool { return c.String() == o.String() }

// Matches проверяет нажатие: основная клавиша совпадает и зажаты ровно требуемые модификаторы.
func (c Combo) Matches(key string, mods Modifiers) bool {
	if c.IsZero() {
		return false
	}
	return key == c.Key && mods == c.Mods
}

// Normalize разбирает человекочитаемую строку («Ctrl+Space», «control+shift+d»).
// ok=false — пустая строка, неизвестный токен, ноль или больше одной основной клавиши.
func Normalize(raw string) (Combo, bool) {
	candidate := strings.ToLower(strings.TrimSpace(raw))
	if candidate == "" {
		return Combo{}, false
	}

	var c Combo
	for _, part := range strings.Split(candidate, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m, ok := modifierAliases[part]; ok {
			c.Mods |= m
			continue
		}
		key, ok := baseKey(part)
		if !ok || c.Key != "" {
			return Combo{}, false
		}
		c.Key = key
	}
	if c.Key == "" {
		return Combo{}, false
	}
	return c, true
}

// MustNormalize для констант по умолчанию.
func MustNormalize(raw string) Combo {
	c, ok := Normalize(raw)
	if !ok {
		panic(fmt.Sprintf("trigger: bad default combination %q", raw))
	}
	return c
}

func baseKey(part string) (string, bool) {
	if alias, ok := keyAliases[part]; ok {
		part = alias
	}
	if _, ok := namedBaseKeys[part]; ok {
		return part, true
	}
	if utf8.RuneCountInString(part) == 1 {
		r := part[0]
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return part, true
		}
		return "", false
	}
	if isFunctionKey(part) {
		return part, true
	}
	return "", false
}

func isFunctionKey(s string) bool {
	if len(s) < 2 || len(s) > 3 || s[0] != 'f' {
		return false
	}
	n := 0
	for _, ch := range s[1:] {
		if ch < '0' || ch > '9' {
			return false
		}
		n = n*10 + int(ch-'0')
	}
	return n >= 1 && n <= 24 && s[1] != '0'
}
