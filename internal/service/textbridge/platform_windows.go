//go:build windows

package textbridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/atotto/clipboard"
	"github.com/lxn/win"
	"github.com/micmonay/keybd_event"
)

// Обёртки для функций, которых может не быть в lxn/win
var (
	user32                = syscall.NewLazyDLL("user32.dll")
	procIsWindow          = user32.NewProc("IsWindow")
	procGetGUIThreadInfo  = user32.NewProc("GetGUIThreadInfo")
	procAttachThreadInput = user32.NewProc("AttachThreadInput")
	procEnumChildWindows  = user32.NewProc("EnumChildWindows")
)

type guiThreadInfo struct {
	CbSize        uint32
	Flags         uint32
	HwndActive    win.HWND
	HwndFocus     win.HWND
	HwndCapture   win.HWND
	HwndMenuOwner win.HWND
	HwndMoveSize  win.HWND
	HwndCaret     win.HWND
	RcCaret       win.RECT
}

// Классы окон, в которые можно писать текст.
var editableClasses = []string{"edit", "richedit", "scintilla", "memo"}

type winPlatform struct {
	kbOnce sync.Once
	kb     keybd_event.KeyBonding
	kbErr  error
}

// NewPlatform возвращает платформу Win32.
func NewPlatform() Platform { return &winPlatform{} }

func (p *winPlatform) Foreground() (uintptr, error) {
	h := win.GetForegroundWindow()
	if h == 0 {
		return 0, errors.New("no foreground window")
	}
	return uintptr(h), nil
}

// Focused контрол с фокусом ввода в потоке активного окна (GetFocus видит только свой поток).
func (p *winPlatform) Focused() (uintptr, error) {
	fg := win.GetForegroundWindow()
	if fg == 0 {
		return 0, errors.New("no foreground window")
	}
	tid := win.GetWindowThreadProcessId(fg, nil)
	var gti guiThreadInfo
	gti.CbSize = uint32(unsafe.Sizeof(gti))
	r, _, err := procGetGUIThreadInfo.Call(uintptr(tid), uintptr(unsafe.Pointer(&gti)))
	if r == 0 {
		return 0, fmt.Errorf("GetGUIThreadInfo: %w", err)
	}
	return uintptr(gti.HwndFocus), nil
}

func (p *winPlatform) IsWindow(h uintptr) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(h)
	return r != 0
}

func (p *winPlatform) RestoreFocus(window, control uintptr) error {
	if !p.IsWindow(window) {
		return errors.New("window closed")
	}
	if win.GetForegroundWindow() != win.HWND(window) {
		win.SetForegroundWindow(win.HWND(window))
	}
	if control == 0 || control == window || !p.IsWindow(control) {
		return nil
	}
	// SetFocus работает только для окон потока, к вводу которого мы присоединены
	target := win.GetWindowThreadProcessId(win.HWND(control), nil)
	self := win.GetCurrentThreadId()
	if target != self {
		procAttachThreadInput.Call(uintptr(self), uintptr(target), 1)
		defer procAttachThreadInput.Call(uintptr(self), uintptr(target), 0)
	}
	if win.SetFocus(win.HWND(control)) == 0 {
		return errors.New("SetFocus failed")
	}
	return nil
}

func (p *winPlatform) SendChord(c Chord) error {
	p.kbOnce.Do(func() { p.kb, p.kbErr = keybd_event.NewKeyBonding() })
	if p.kbErr != nil {
		return p.kbErr
	}
	switch c {
	case ChordSelectAll:
		p.kb.SetKeys(keybd_event.VK_A)
	case ChordCopy:
		p.kb.SetKeys(keybd_event.VK_C)
	case ChordPaste:
		p.kb.SetKeys(keybd_event.VK_V)
	default:
		return fmt.Errorf("unknown chord %d", int(c))
	}
	p.kb.HasCTRL(true)
	defer p.kb.Clear()
	return p.kb.Launching()
}

func (p *winPlatform) ClipboardText() (string, bool, error) {
	if !win.IsClipboardFormatAvailable(win.CF_UNICODETEXT) {
		return "", false, nil
	}
	t, err := clipboard.ReadAll()
	if err != nil {
		return "", false, err
	}
	return t, true, nil
}

func (p *winPlatform) SetClipboardText(text string) error {
	return clipboard.WriteAll(text)
}

func (p *winPlatform) EmptyClipboard() error {
	if !win.OpenClipboard(0) {
		return errors.New("OpenClipboard failed")
	}
	defer win.CloseClipboard()
	if !win.EmptyClipboard() {
		return errors.New("EmptyClipboard failed")
	}
	return nil
}

func (p *winPlatform) EditableDescendants(window uintptr) ([]uintptr, error) {
	if !p.IsWindow(window) {
		return nil, errors.New("window closed")
	}
	focused, _ := p.Focused()
	var out []uintptr
	cb := syscall.NewCallback(func(h win.HWND, _ uintptr) uintptr {
		if isEditableClass(h) {
			if uintptr(h) == focused {
				out = append([]uintptr{uintptr(h)}, out...)
			} else {
				out = append(out, uintptr(h))
			}
		}
		return 1
	})
	procEnumChildWindows.Call(window, cb, 0)
	if len(out) == 0 {
		return nil, errors.New("no editable descendants")
	}
	return out, nil
}

func (p *winPlatform) ControlText(h uintptr) (string, error) {
	if !p.IsWindow(h) {
		return "", errors.New("window closed")
	}
	n := win.SendMessage(win.HWND(h), win.WM_GETTEXTLENGTH, 0, 0)
	if n == 0 {
		return "", nil
	}
	buf := make([]uint16, n+1)
	got := win.SendMessage(win.HWND(h), win.WM_GETTEXT, n+1, uintptr(unsafe.Pointer(&buf[0])))
	if got == 0 {
		return "", errors.New("WM_GETTEXT returned nothing")
	}
	return syscall.UTF16ToString(buf[:got]), nil
}

func (p *winPlatform) SetControlText(h uintptr, text string) error {
	if !p.IsWindow(h) {
		return errors.New("window closed")
	}
	ptr, err := syscall.UTF16PtrFromString(text)
	if err != nil {
		return err
	}
	if win.SendMessage(win.HWND(h), win.WM_SETTEXT, 0, uintptr(unsafe.Pointer(ptr))) == 0 {
		return errors.New("WM_SETTEXT rejected")
	}
	if text != "" && win.SendMessage(win.HWND(h), win.WM_GETTEXTLENGTH, 0, 0) == 0 {
		return errors.New("WM_SETTEXT had no effect")
	}
	return nil
}

func isEditableClass(h win.HWND) bool {
	buf := make([]uint16, 256)
	n, err := win.GetClassName(h, &buf[0], len(buf))
	if err != nil || n == 0 {
		return false
	}
	name := strings.ToLower(syscall.UTF16ToString(buf[:n]))
	for _, c := range editableClasses {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}
