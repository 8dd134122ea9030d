// Package textbridge читает и перезаписывает текст активного контрола чужого приложения
// через несколько платформенных механизмов по очереди. Буфер обмена и фокус
// после любого вызова возвращаются в исходное состояние.
package textbridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Control непрозрачный дескриптор контрола, найденного при чтении. 0 — нет подсказки.
type Control uintptr

// Guard помечает период, когда мост сам генерирует нажатия клавиш.
type Guard interface {
	Enter()
	Exit()
}

// Recorder получает исход каждой стратегии.
type Recorder interface {
	RecordBridge(op, strategy string, ok bool)
}

// Timing задержки между синтетическими нажатиями.
type Timing struct {
	ChordDelay       time.Duration // после Ctrl+A / Ctrl+C
	StageDelay       time.Duration // после записи в буфер обмена
	PasteDelay       time.Duration // ожидание завершения вставки
	RoundTripDelay   time.Duration // последняя попытка чтения, приложение может быть медленным
	ClipboardRetries int
	ClipboardBackoff time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ChordDelay:       50 * time.Millisecond,
		StageDelay:       30 * time.Millisecond,
		PasteDelay:       80 * time.Millisecond,
		RoundTripDelay:   150 * time.Millisecond,
		ClipboardRetries: 5,
		ClipboardBackoff: 50 * time.Millisecond,
	}
}

type Options struct {
	Timing   Timing
	Title    TitleHeuristic
	Guard    Guard
	Recorder Recorder
}

// Bridge не хранит состояния между вызовами.
type Bridge struct {
	p      Platform
	logger *zap.SugaredLogger
	timing Timing
	title  TitleHeuristic
	guard  Guard
	rec    Recorder
	sleep  func(time.Duration)
}

func New(p Platform, opts Options, logger *zap.SugaredLogger) *Bridge {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Timing.ClipboardRetries <= 0 {
		opts.Timing.ClipboardRetries = 1
	}
	if opts.Title.MaxLen == 0 && opts.Title.Patterns == nil {
		opts.Title = DefaultTitleHeuristic()
	}
	return &Bridge{
		p:      p,
		logger: logger,
		timing: opts.Timing,
		title:  opts.Title,
		guard:  opts.Guard,
		rec:    opts.Recorder,
		sleep:  time.Sleep,
	}
}

type focusSnapshot struct {
	window  uintptr
	control uintptr
}

type strategy struct {
	name string
	read func(focusSnapshot) (string, uintptr, error)
}

// ReadActive возвращает полный текст активного контрола и его дескриптор.
// ok=false — ни одна стратегия не дала пригодного текста.
func (b *Bridge) ReadActive() (text string, ctrl Control, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Паника при чтении текста", "panic", r)
			text, ctrl, ok = "", 0, false
		}
	}()
	b.enter()
	defer b.exit()

	snap, err := b.snapshot()
	if err != nil {
		b.logger.Warnw("Нет активного окна для чтения", "error", err)
		return "", 0, false
	}

	strategies := []strategy{
		{"clipboard", b.readViaCopy},
		{"descendant", b.readViaDescendants},
		{"native", b.readViaMessage},
		{"roundtrip", b.readViaRoundTrip},
	}
	for _, s := range strategies {
		t, h, err := s.read(snap)
		b.restoreFocus(snap)
		if err != nil {
			b.logger.Debugw("Стратегия чтения не сработала", "strategy", s.name, "error", err)
			b.record("read", s.name, false)
			continue
		}
		if !b.usable(t) {
			b.record("read", s.name, false)
			continue
		}
		b.record("read", s.name, true)
		b.logger.Debugw("Текст прочитан", "strategy", s.name, "chars", len([]rune(t)))
		return t, Control(h), true
	}
	b.logger.Warnw("Не удалось прочитать текст активного окна")
	return "", 0, false
}

type writeStrategy struct {
	name  string
	write func(focusSnapshot, string) error
}

// WriteActive заменяет весь текст активного контрола. false — ничего не изменилось.
func (b *Bridge) WriteActive(text string, hint Control) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Паника при записи текста", "panic", r)
			ok = false
		}
	}()
	b.enter()
	defer b.exit()

	snap, err := b.snapshot()
	if err != nil {
		b.logger.Warnw("Нет активного окна для записи", "error", err)
		return false
	}
	h := uintptr(hint)
	if h != 0 && !b.p.IsWindow(h) {
		b.logger.Debugw("Подсказка контрола устарела", "control", h)
		h = 0
	}

	strategies := []writeStrategy{
		{"clipboard", b.writeViaPaste},
		{"descendant", b.writeViaDescendants},
		{"control", func(_ focusSnapshot, t string) error {
			if h == 0 {
				return errors.New("no control hint")
			}
			return b.p.SetControlText(h, t)
		}},
		{"native", b.writeViaMessage},
	}
	for _, s := range strategies {
		err := s.write(snap, text)
		b.restoreFocus(snap)
		if err != nil {
			b.logger.Debugw("Стратегия записи не сработала", "strategy", s.name, "error", err)
			b.record("write", s.name, false)
			continue
		}
		b.record("write", s.name, true)
		b.logger.Infow("Текст заменён", "strategy", s.name, "chars", len([]rune(text)))
		return true
	}
	b.logger.Errorw("Все способы замены текста не сработали")
	return false
}

func (b *Bridge) readViaCopy(snap focusSnapshot) (string, uintptr, error) {
	saved, err := b.saveClipboard()
	if err != nil {
		return "", 0, err
	}
	defer b.restoreClipboard(saved)

	// пустой буфер: неудачное копирование не вернёт старое содержимое
	if err := b.withRetry(b.p.EmptyClipboard); err != nil {
		return "", 0, fmt.Errorf("empty clipboard: %w", err)
	}
	if err := b.chord(ChordSelectAll); err != nil {
		return "", 0, err
	}
	if err := b.chord(ChordCopy); err != nil {
		return "", 0, err
	}
	t, ok, err := b.clipboardText()
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, errors.New("nothing copied")
	}
	return t, snap.window, nil
}

func (b *Bridge) readViaDescendants(snap focusSnapshot) (string, uintptr, error) {
	ds, err := b.p.EditableDescendants(snap.window)
	if err != nil {
		return "", 0, err
	}
	for _, d := range ds {
		t, err := b.p.ControlText(d)
		if err != nil {
			continue
		}
		if b.usable(t) {
			return t, d, nil
		}
	}
	return "", 0, errors.New("no readable editable descendant")
}

func (b *Bridge) readViaMessage(snap focusSnapshot) (string, uintptr, error) {
	if t, err := b.p.ControlText(snap.window); err == nil && b.usable(t) {
		return t, snap.window, nil
	}
	if snap.control != 0 && snap.control != snap.window {
		t, err := b.p.ControlText(snap.control)
		if err != nil {
			return "", 0, err
		}
		return t, snap.control, nil
	}
	return "", 0, errors.New("window has no text")
}

func (b *Bridge) readViaRoundTrip(snap focusSnapshot) (string, uintptr, error) {
	saved, err := b.saveClipboard()
	if err != nil {
		return "", 0, err
	}
	defer b.restoreClipboard(saved)

	if err := b.chord(ChordSelectAll); err != nil {
		return "", 0, err
	}
	if err := b.chord(ChordCopy); err != nil {
		return "", 0, err
	}
	b.sleep(b.timing.RoundTripDelay)
	t, ok, err := b.clipboardText()
	if err != nil {
		return "", 0, err
	}
	if !ok || (saved.had && t == saved.text) {
		return "", 0, errors.New("clipboard unchanged after copy")
	}
	return t, 0, nil
}

func (b *Bridge) writeViaPaste(snap focusSnapshot, text string) error {
	saved, err := b.saveClipboard()
	if err != nil {
		// без сохранённого содержимого нельзя гарантировать восстановление
		return err
	}
	defer b.restoreClipboard(saved)

	if err := b.withRetry(func() error { return b.p.SetClipboardText(text) }); err != nil {
		return fmt.Errorf("stage clipboard: %w", err)
	}
	b.sleep(b.timing.StageDelay)
	if err := b.chord(ChordSelectAll); err != nil {
		return err
	}
	if err := b.p.SendChord(ChordPaste); err != nil {
		return fmt.Errorf("send %s: %w", ChordPaste, err)
	}
	b.sleep(b.timing.PasteDelay)
	return nil
}

func (b *Bridge) writeViaDescendants(snap focusSnapshot, text string) error {
	ds, err := b.p.EditableDescendants(snap.window)
	if err != nil {
		return err
	}
	for _, d := range ds {
		if err := b.p.SetControlText(d, text); err == nil {
			return nil
		}
	}
	return errors.New("no writable editable descendant")
}

func (b *Bridge) writeViaMessage(snap focusSnapshot, text string) error {
	err := b.p.SetControlText(snap.window, text)
	if err == nil {
		return nil
	}
	if snap.control != 0 && snap.control != snap.window {
		return b.p.SetControlText(snap.control, text)
	}
	return err
}

func (b *Bridge) snapshot() (focusSnapshot, error) {
	w, err := b.p.Foreground()
	if err != nil {
		return focusSnapshot{}, err
	}
	if w == 0 || !b.p.IsWindow(w) {
		return focusSnapshot{}, errors.New("no foreground window")
	}
	c, err := b.p.Focused()
	if err != nil {
		c = 0
	}
	return focusSnapshot{window: w, control: c}, nil
}

func (b *Bridge) restoreFocus(snap focusSnapshot) {
	if err := b.p.RestoreFocus(snap.window, snap.control); err != nil {
		b.logger.Debugw("Не удалось вернуть фокус", "window", snap.window, "control", snap.control, "error", err)
	}
}

type clipSnapshot struct {
	text string
	had  bool
}

func (b *Bridge) saveClipboard() (clipSnapshot, error) {
	t, ok, err := b.clipboardText()
	if err != nil {
		return clipSnapshot{}, fmt.Errorf("save clipboard: %w", err)
	}
	return clipSnapshot{text: t, had: ok}, nil
}

func (b *Bridge) restoreClipboard(s clipSnapshot) {
	var err error
	if s.had {
		err = b.withRetry(func() error { return b.p.SetClipboardText(s.text) })
	} else {
		err = b.withRetry(b.p.EmptyClipboard)
	}
	if err != nil {
		b.logger.Errorw("Не удалось восстановить буфер обмена", "error", err)
	}
}

func (b *Bridge) clipboardText() (string, bool, error) {
	var (
		text string
		ok   bool
	)
	err := b.withRetry(func() error {
		var err error
		text, ok, err = b.p.ClipboardText()
		return err
	})
	return text, ok, err
}

func (b *Bridge) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < b.timing.ClipboardRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		b.sleep(b.timing.ClipboardBackoff)
	}
	return err
}

func (b *Bridge) chord(c Chord) error {
	if err := b.p.SendChord(c); err != nil {
		return fmt.Errorf("send %s: %w", c, err)
	}
	b.sleep(b.timing.ChordDelay)
	return nil
}

func (b *Bridge) usable(t string) bool {
	return strings.TrimSpace(t) != "" && !b.title.LooksLikeTitle(t)
}

func (b *Bridge) enter() {
	if b.guard != nil {
		b.guard.Enter()
	}
}

func (b *Bridge) exit() {
	if b.guard != nil {
		b.guard.Exit()
	}
}

func (b *Bridge) record(op, strategy string, ok bool) {
	if b.rec != nil {
		b.rec.RecordBridge(op, strategy, ok)
	}
}
