//go:build !windows

package dictation

import (
	"context"

	"go.uber.org/zap"
)

type ClipboardWatcher struct{}

func NewClipboardWatcher(*zap.SugaredLogger) *ClipboardWatcher { return &ClipboardWatcher{} }

func (w *ClipboardWatcher) Run(context.Context, chan<- string) error { return ErrUnsupported }
