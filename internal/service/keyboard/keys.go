package keyboard

import "fmt"

// Виртуальные коды, нужные вне таблицы имён.
const (
	vkBack    = 0x08
	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkCapital = 0x14
)

// Имена совпадают с именами, которые понимают trigger.Normalize и теневой буфер.
var vkNames = map[uint32]string{
	0x08: "backspace",
	0x09: "tab",
	0x0D: "enter",
	0x10: "shift",
	0x11: "ctrl",
	0x12: "alt",
	0x13: "pause",
	0x14: "caps lock",
	0x1B: "esc",
	0x20: "space",
	0x21: "page up",
	0x22: "page down",
	0x23: "end",
	0x24: "home",
	0x25: "left",
	0x26: "up",
	0x27: "right",
	0x28: "down",
	0x2C: "print screen",
	0x2D: "insert",
	0x2E: "delete",
	0x5B: "left windows",
	0x5C: "right windows",
	0x90: "num lock",
	0x91: "scroll lock",
	0xA0: "left shift",
	0xA1: "right shift",
	0xA2: "left ctrl",
	0xA3: "right ctrl",
	0xA4: "left alt",
	0xA5: "right alt",
	0xBA: ";",
	0xBB: "=",
	0xBC: ",",
	0xBD: "-",
	0xBE: ".",
	0xBF: "/",
	0xC0: "`",
	0xDB: "[",
	0xDC: "\\",
	0xDD: "]",
	0xDE: "'",
}

// KeyName базовое имя виртуальной клавиши, без учёта раскладки и Shift.
func KeyName(vk uint32) string {
	switch {
	case vk >= 'A' && vk <= 'Z':
		return string(rune(vk - 'A' + 'a'))
	case vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= 0x60 && vk <= 0x69: // цифровой блок
		return string(rune('0' + vk - 0x60))
	case vk >= 0x70 && vk <= 0x87:
		return fmt.Sprintf("f%d", vk-0x70+1)
	}
	if n, ok := vkNames[vk]; ok {
		return n
	}
	return fmt.Sprintf("vk%#02x", vk)
}

// isModifierKey клавиши, которые сами по себе ничего не печатают.
func isModifierKey(vk uint32) bool {
	switch vk {
	case vkShift, vkControl, vkMenu, 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0x5B, 0x5C:
		return true
	}
	return false
}
