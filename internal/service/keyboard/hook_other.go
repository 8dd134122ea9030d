//go:build !windows

package keyboard

import "go.uber.org/zap"

// Hook заглушка: глобальный перехват есть только в Windows.
type Hook struct{}

func NewHook(*zap.SugaredLogger) *Hook { return &Hook{} }

func (h *Hook) Subscribe(Handler) error { return ErrUnsupported }

func (h *Hook) Unsubscribe() {}

func Foreground() uintptr { return 0 }
