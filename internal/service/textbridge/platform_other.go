//go:build !windows

package textbridge

type stubPlatform struct{}

// NewPlatform на не-Windows платформах: любой вызов — ErrUnsupported.
func NewPlatform() Platform { return stubPlatform{} }

func (stubPlatform) Foreground() (uintptr, error) { return 0, ErrUnsupported }

func (stubPlatform) Focused() (uintptr, error) { return 0, ErrUnsupported }

func (stubPlatform) IsWindow(uintptr) bool { return false }

func (stubPlatform) RestoreFocus(uintptr, uintptr) error { return ErrUnsupported }

func (stubPlatform) SendChord(Chord) error { return ErrUnsupported }

func (stubPlatform) ClipboardText() (string, bool, error) { return "", false, ErrUnsupported }

func (stubPlatform) SetClipboardText(string) error { return ErrUnsupported }

func (stubPlatform) EmptyClipboard() error { return ErrUnsupported }

func (stubPlatform) EditableDescendants(uintptr) ([]uintptr, error) { return nil, ErrUnsupported }

func (stubPlatform) ControlText(uintptr) (string, error) { return "", ErrUnsupported }

func (stubPlatform) SetControlText(uintptr, string) error { return ErrUnsupported }
