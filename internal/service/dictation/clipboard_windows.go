//go:build windows

package dictation

import (
	"context"
	"errors"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/atotto/clipboard"
	"github.com/lxn/win"
	"go.uber.org/zap"
)

// Обёртки для функций, которых может не быть в lxn/win
var (
	user32                          = syscall.NewLazyDLL("user32.dll")
	procAddClipboardFormatListener  = user32.NewProc("AddClipboardFormatListener")
	procRemoveClipboardFormatListen = user32.NewProc("RemoveClipboardFormatListener")
)

// ClipboardWatcher скрытое окно, подписанное на WM_CLIPBOARDUPDATE.
type ClipboardWatcher struct {
	logger *zap.SugaredLogger
}

func NewClipboardWatcher(logger *zap.SugaredLogger) *ClipboardWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ClipboardWatcher{logger: logger}
}

func (w *ClipboardWatcher) Run(ctx context.Context, out chan<- string) error {
	// окно и его очередь сообщений живут в одном системном потоке
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className := syscall.StringToUTF16Ptr("TextCorrectorClipboardWatcher")

	var wc win.WNDCLASSEX
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	wc.LpfnWndProc = syscall.NewCallback(func(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
		switch msg {
		case win.WM_CLIPBOARDUPDATE:
			if !win.IsClipboardFormatAvailable(win.CF_UNICODETEXT) {
				return 0
			}
			txt, err := clipboard.ReadAll()
			if err != nil {
				w.logger.Debugw("Не удалось прочитать буфер обмена", "error", err)
				return 0
			}
			select {
			case out <- txt:
			default:
			}
			return 0
		case win.WM_DESTROY:
			win.PostQuitMessage(0)
			return 0
		}
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	})
	wc.HInstance = win.GetModuleHandle(nil)
	wc.LpszClassName = className
	// повторная регистрация класса после перезапуска возвращает 0, окно всё равно создаётся
	win.RegisterClassEx(&wc)

	hwnd := win.CreateWindowEx(0, className, syscall.StringToUTF16Ptr("TextCorrectorClipboardWatcher"),
		0, 0, 0, 0, 0, win.HWND_MESSAGE, 0, wc.HInstance, nil)
	if hwnd == 0 {
		return errors.New("dictation: create hidden window failed")
	}
	if !addClipboardFormatListener(hwnd) {
		win.DestroyWindow(hwnd)
		return errors.New("dictation: AddClipboardFormatListener failed")
	}
	defer removeClipboardFormatListener(hwnd)

	stop := context.AfterFunc(ctx, func() { win.PostMessage(hwnd, win.WM_CLOSE, 0, 0) })
	defer stop()

	msg := new(win.MSG)
	for {
		r := win.GetMessage(msg, 0, 0, 0)
		if r == 0 || r == -1 { // WM_QUIT или ошибка
			break
		}
		win.TranslateMessage(msg)
		win.DispatchMessage(msg)
	}
	return context.Cause(ctx)
}

func addClipboardFormatListener(hwnd win.HWND) bool {
	if procAddClipboardFormatListener.Find() != nil {
		return false
	}
	r, _, _ := procAddClipboardFormatListener.Call(uintptr(hwnd))
	return r != 0
}

func removeClipboardFormatListener(hwnd win.HWND) bool {
	if procRemoveClipboardFormatListen.Find() != nil {
		return false
	}
	r, _, _ := procRemoveClipboardFormatListen.Call(uintptr(hwnd))
	return r != 0
}
