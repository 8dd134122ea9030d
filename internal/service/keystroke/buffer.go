package keystroke

import (
	"container/list"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultMaxChars        = 10000
	DefaultMaxWindows      = 10
	DefaultCleanupInterval = time.Minute
)

var keyMapping = map[string]string{
	"space": " ",
	"enter": "\n",
	"tab":   "\t",
}

// Клавиши, не меняющие текст.
var ignoredKeys = map[string]struct{}{
	"shift": {}, "ctrl": {}, "alt": {}, "win": {},
	"left shift": {}, "right shift": {}, "left ctrl": {}, "right ctrl": {},
	"left alt": {}, "right alt": {}, "left windows": {}, "right windows": {},
	"caps lock": {}, "num lock": {}, "scroll lock": {}, "pause": {}, "print screen": {},
	"insert": {}, "delete": {}, "esc": {},
	"up": {}, "down": {}, "left": {}, "right": {},
	"page up": {}, "page down": {}, "home": {}, "end": {},
}

// Config параметры буфера.
type Config struct {
	MaxChars        int
	MaxWindows      int
	CleanupInterval time.Duration
}

type entry struct {
	window uintptr
	text   []rune
	stale  bool
	elem   *list.Element
}

// Buffer теневая копия набранного текста по окнам. Не читает чужое приложение,
// не возвращает ошибок: неизвестное окно — пустой текст.
type Buffer struct {
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time

	mu          sync.Mutex
	entries     map[uintptr]*entry
	lru         *list.List // front — последнее касание
	current     uintptr
	lastCleanup time.Time
}

func New(cfg Config, logger *zap.SugaredLogger) *Buffer {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MaxWindows <= 0 {
		cfg.MaxWindows = DefaultMaxWindows
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Buffer{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[uintptr]*entry),
		lru:     list.New(),
	}
}

// Focus фиксирует окно в фокусе. При смене окна периодически чистит старые буферы.
func (b *Buffer) Focus(window uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if window == b.current {
		return
	}
	b.current = window
	b.logger.Debugw("Смена окна", "window", window)
	if now := b.now(); now.Sub(b.lastCleanup) >= b.cfg.CleanupInterval {
		b.lastCleanup = now
		b.evictLocked()
	}
}

// OnKey добавляет символ нажатой клавиши или удаляет последний при backspace.
func (b *Buffer) OnKey(window uintptr, key string, isBackspace bool) {
	if window == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if isBackspace || key == "backspace" {
		e := b.touchLocked(window)
		if n := len(e.text); n > 0 {
			e.text = e.text[:n-1]
		}
		return
	}
	if _, skip := ignoredKeys[key]; skip {
		return
	}
	ch, ok := keyMapping[key]
	if !ok {
		if utf8.RuneCountInString(key) != 1 {
			return
		}
		ch = key
	}
	e := b.touchLocked(window)
	e.text = b.capped(append(e.text, []rune(ch)...))
}

// AddText дописывает готовый текст (например, надиктованный).
func (b *Buffer) AddText(window uintptr, text string) {
	if window == 0 || text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.touchLocked(window)
	e.text = b.capped(append(e.text, []rune(text)...))
}

// Get возвращает текст окна.
func (b *Buffer) Get(window uintptr) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[window]
	if !ok {
		return ""
	}
	b.lru.MoveToFront(e.elem)
	return string(e.text)
}

// Set заменяет текст окна, снимает отметку рассинхронизации.
func (b *Buffer) Set(window uintptr, text string) {
	if window == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.touchLocked(window)
	e.text = b.capped([]rune(text))
	e.stale = false
}

// Clear очищает текст окна, не забывая само окно.
func (b *Buffer) Clear(window uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[window]; ok {
		e.text = e.text[:0]
		e.stale = false
	}
}

// ResetOnNavigation отмечает, что каретка сдвинулась без набора.
// Буфер не чистится: при пустом буфере оркестратор всё равно читает живой контрол.
func (b *Buffer) ResetOnNavigation(window uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[window]; ok {
		e.stale = true
	}
}

// Stale сообщает, могла ли копия разойтись с реальным текстом.
func (b *Buffer) Stale(window uintptr) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[window]
	return ok && e.stale
}

// Evict оставляет не больше MaxWindows окон, окно в фокусе сохраняется всегда.
func (b *Buffer) Evict() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocked()
}

// Len число отслеживаемых окон.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) touchLocked(window uintptr) *entry {
	if e, ok := b.entries[window]; ok {
		b.lru.MoveToFront(e.elem)
		return e
	}
	e := &entry{window: window}
	e.elem = b.lru.PushFront(e)
	b.entries[window] = e
	if len(b.entries) > b.cfg.MaxWindows {
		b.evictLocked(window)
	}
	return e
}

// evictLocked удаляет самые давние окна; keep — окна, которые трогать нельзя помимо текущего.
func (b *Buffer) evictLocked(keep ...uintptr) {
	removed := 0
	for el := b.lru.Back(); el != nil && len(b.entries) > b.cfg.MaxWindows; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e.window != b.current && !contains(keep, e.window) {
			b.lru.Remove(el)
			delete(b.entries, e.window)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		b.logger.Debugw("Удалены старые буферы окон", "removed", removed, "kept", len(b.entries))
	}
}

func (b *Buffer) capped(text []rune) []rune {
	if len(text) <= b.cfg.MaxChars {
		return text
	}
	out := make([]rune, b.cfg.MaxChars)
	copy(out, text[len(text)-b.cfg.MaxChars:])
	return out
}

func contains(ids []uintptr, id uintptr) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
