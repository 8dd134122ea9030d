//go:build windows

package keyboard

import (
	"errors"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"go.uber.org/zap"

	"TextCorrector/internal/trigger"
)

// Обёртки для функций, которых может не быть в lxn/win
var (
	user32                  = syscall.NewLazyDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procGetKeyState         = user32.NewProc("GetKeyState")
	procGetKeyboardLayout   = user32.NewProc("GetKeyboardLayout")
	procToUnicodeEx         = user32.NewProc("ToUnicodeEx")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	llkhfInjected = 0x10
	installWait   = 2 * time.Second
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Hook WH_KEYBOARD_LL в отдельном закреплённом потоке со своим циклом сообщений.
type Hook struct {
	logger *zap.SugaredLogger

	mu       sync.Mutex
	threadID uint32
	done     chan struct{}
}

func NewHook(logger *zap.SugaredLogger) *Hook {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hook{logger: logger}
}

func (h *Hook) Subscribe(fn Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != nil {
		return ErrAlreadySubscribed
	}

	type installed struct {
		tid uint32
		err error
	}
	ready := make(chan installed, 1)
	done := make(chan struct{})

	go func() {
		// хук получает события только пока его поток крутит цикл сообщений
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)

		disp := newDispatcher(func(r any) {
			h.logger.Errorw("Паника в обработчике клавиатуры", "panic", r)
		})
		callback := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
			if int32(nCode) < 0 {
				ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
				return ret
			}
			k := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
			msg := uint32(wParam)
			if msg != wmKeyDown && msg != wmSysKeyDown && msg != wmKeyUp && msg != wmSysKeyUp {
				ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
				return ret
			}
			ev := buildEvent(k, msg == wmKeyDown || msg == wmSysKeyDown)
			if disp.dispatch(k.VkCode, ev, fn) {
				return 1
			}
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		})

		hook, _, err := procSetWindowsHookExW.Call(whKeyboardLL, callback, uintptr(win.GetModuleHandle(nil)), 0)
		if hook == 0 {
			ready <- installed{err: err}
			return
		}
		ready <- installed{tid: win.GetCurrentThreadId()}

		msg := new(win.MSG)
		for {
			r := win.GetMessage(msg, 0, 0, 0)
			if r == 0 || r == -1 { // WM_QUIT или ошибка
				break
			}
			win.TranslateMessage(msg)
			win.DispatchMessage(msg)
		}
		procUnhookWindowsHookEx.Call(hook)
		h.logger.Infow("Глобальный хук клавиатуры снят")
	}()

	select {
	case res := <-ready:
		if res.err != nil {
			return res.err
		}
		h.threadID = res.tid
		h.done = done
		h.logger.Infow("Глобальный хук клавиатуры установлен")
		return nil
	case <-time.After(installWait):
		return errors.New("keyboard: hook installation timed out")
	}
}

func (h *Hook) Unsubscribe() {
	h.mu.Lock()
	done, tid := h.done, h.threadID
	h.done, h.threadID = nil, 0
	h.mu.Unlock()
	if done == nil {
		return
	}
	procPostThreadMessageW.Call(uintptr(tid), uintptr(win.WM_QUIT), 0, 0)
	select {
	case <-done:
	case <-time.After(installWait):
		h.logger.Warnw("Поток хука не завершился вовремя")
	}
}

// Foreground дескриптор активного окна, 0 — нет.
func Foreground() uintptr { return uintptr(win.GetForegroundWindow()) }

func buildEvent(k *kbdLLHookStruct, down bool) Event {
	mods := currentMods()
	ev := Event{
		Key:      KeyName(k.VkCode),
		Down:     down,
		Mods:     mods,
		Window:   Foreground(),
		Injected: k.Flags&llkhfInjected != 0,
	}
	// с Ctrl/Alt символ не печатается, это сочетание
	if down && !ev.Injected && !mods.Has(trigger.ModCtrl) && !mods.Has(trigger.ModAlt) && !isModifierKey(k.VkCode) {
		ev.Char = toChar(k, mods.Has(trigger.ModShift), ev.Window)
	}
	return ev
}

func keyDown(vk uint32) bool {
	st, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return st&0x8000 != 0
}

func currentMods() trigger.Modifiers {
	var m trigger.Modifiers
	if keyDown(vkControl) {
		m |= trigger.ModCtrl
	}
	if keyDown(vkShift) {
		m |= trigger.ModShift
	}
	if keyDown(vkMenu) {
		m |= trigger.ModAlt
	}
	return m
}

// toChar символ клавиши в раскладке активного окна.
// Состояние клавиатуры собираем сами: GetKeyboardState видит только свой поток.
func toChar(k *kbdLLHookStruct, shift bool, window uintptr) string {
	switch k.VkCode {
	case vkBack, 0x09, 0x0D, 0x20:
		return ""
	}
	var state [256]byte
	if shift {
		state[vkShift] = 0x80
	}
	if caps, _, _ := procGetKeyState.Call(vkCapital); caps&1 != 0 {
		state[vkCapital] = 0x01
	}
	tid := win.GetWindowThreadProcessId(win.HWND(window), nil)
	layout, _, _ := procGetKeyboardLayout.Call(uintptr(tid))

	var buf [8]uint16
	// флаг 0x4: не менять состояние мёртвых клавиш в ядре
	n, _, _ := procToUnicodeEx.Call(
		uintptr(k.VkCode),
		uintptr(k.ScanCode),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0x4,
		layout,
	)
	if int32(n) <= 0 {
		return ""
	}
	s := syscall.UTF16ToString(buf[:n])
	if s == "" || s[0] < 0x20 {
		return ""
	}
	return s
}
