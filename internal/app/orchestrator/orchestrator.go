// Package orchestrator машина состояний коррекции: ловит триггеры с глобального хука,
// отправляет дельту текста в движок и показывает варианты прямо в чужом окне.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"TextCorrector/internal/adapter/settings"
	"TextCorrector/internal/app/workerpool"
	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/service/keyboard"
	"TextCorrector/internal/service/textbridge"
	"TextCorrector/internal/trigger"
)

var (
	ErrBusy           = errors.New("orchestrator: correction already in progress")
	ErrInvalidSetting = errors.New("orchestrator: invalid setting")
	ErrNoListener     = errors.New("orchestrator: key listener is required")
)

var errStopped = errors.New("orchestrator stopped")

// DefaultMaxTextLength длиннее этого текст в движок не отправляем.
const DefaultMaxTextLength = 10000

// State состояние коррекции.
type State int

const (
	Idle      State = iota
	Pending         // запрос в движок в полёте
	Selecting       // варианты показаны, можно листать
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Selecting:
		return "selecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Коллабораторы. Все, кроме моста, движка и буфера, необязательны.
type (
	TextBridge interface {
		ReadActive() (string, textbridge.Control, bool)
		WriteActive(text string, hint textbridge.Control) bool
	}
	Engine interface {
		Correct(ctx context.Context, text string, n int, settings []corrector.CandidateSetting) []corrector.Candidate
	}
	ShadowBuffer interface {
		Focus(window uintptr)
		OnKey(window uintptr, key string, isBackspace bool)
		AddText(window uintptr, text string)
		Get(window uintptr) string
		Set(window uintptr, text string)
		Clear(window uintptr)
		ResetOnNavigation(window uintptr)
	}
	History interface {
		AddCorrection(ctx context.Context, original, corrected string, selectedIndex, total int) error
	}
	Loading interface {
		StartLoading()
		StopLoading()
	}
	Dictation interface {
		Toggle()
	}
	Metrics interface {
		CorrectionRequested()
		CorrectionAccepted()
		CorrectionRejected(reason string)
	}
	Pool interface {
		Submit(fn func()) error
		Close()
	}
)

// WindowSource активное окно, 0 — неизвестно.
type WindowSource func() uintptr

type Deps struct {
	Listener  keyboard.Listener
	Bridge    TextBridge
	Engine    Engine
	Buffer    ShadowBuffer
	Pool      Pool // nil — пул из workerpool.DefaultSize воркеров
	Window    WindowSource
	Guard     *Guard // nil — свой
	History   History
	Loading   Loading
	Dictation Dictation
	Metrics   Metrics
	Logger    *zap.SugaredLogger
}

type Options struct {
	// Settings пустые (TriggerKey == "") — значения по умолчанию.
	Settings      settings.Settings
	MaxTextLength int
	// SettleDelay пауза после синтетических нажатий, пока они доходят до хука.
	SettleDelay time.Duration
}

// Orchestrator все поля сессии и конфигурации под одним mu.
// Методы, держащие mu, не вызывают другие методы, которые его берут.
type Orchestrator struct {
	logger    *zap.SugaredLogger
	listener  keyboard.Listener
	bridge    TextBridge
	engine    Engine
	buffer    ShadowBuffer
	pool      Pool
	window    WindowSource
	guard     *Guard
	history   History
	loading   Loading
	dictation Dictation
	metrics   Metrics

	maxTextLength int
	settle        time.Duration

	ctx     context.Context
	cancel  context.CancelCauseFunc
	running atomic.Bool
	bg      sync.WaitGroup // запись истории
	writeMu sync.Mutex     // показы вариантов идут строго по очереди

	mu             sync.Mutex
	state          State
	token          uint64
	sess           *session
	baseline       string // последний принятый полный текст
	accumulator    string
	acceptedWindow uintptr
	triggers       trigger.Set
	count          int
	candSettings   []corrector.CandidateSetting
	paragraph      bool
	listeners      []func(enabled bool)
}

func New(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if deps.Pool == nil {
		deps.Pool = workerpool.New(workerpool.DefaultSize, logger)
	}
	if deps.Window == nil {
		deps.Window = keyboard.Foreground
	}
	if deps.Guard == nil {
		deps.Guard = &Guard{}
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	o := &Orchestrator{
		logger:        logger,
		listener:      deps.Listener,
		bridge:        deps.Bridge,
		engine:        deps.Engine,
		buffer:        deps.Buffer,
		pool:          deps.Pool,
		window:        deps.Window,
		guard:         deps.Guard,
		history:       deps.History,
		loading:       deps.Loading,
		dictation:     deps.Dictation,
		metrics:       deps.Metrics,
		maxTextLength: opts.MaxTextLength,
		settle:        opts.SettleDelay,
		ctx:           ctx,
		cancel:        cancel,
	}

	st := opts.Settings
	if st.TriggerKey == "" {
		st = settings.Defaults()
	}
	if err := o.apply(st); err != nil {
		logger.Warnw("Некорректные настройки, используются значения по умолчанию", "error", err)
		_ = o.apply(settings.Defaults())
	}
	return o
}

// Start подписывается на глобальный хук. Повторный вызов ничего не делает.
func (o *Orchestrator) Start() error {
	if o.listener == nil {
		return ErrNoListener
	}
	if !o.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := o.listener.Subscribe(o.HandleKey); err != nil {
		o.running.Store(false)
		return fmt.Errorf("subscribe key listener: %w", err)
	}
	o.logger.Infow("Оркестратор запущен", "trigger", o.Triggers().Correction.String())
	return nil
}

// Stop сначала отписывается от хука, потом дожидается пула. Повторный вызов безопасен.
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	o.listener.Unsubscribe()
	o.cancel(errStopped)

	o.mu.Lock()
	o.resetLocked()
	o.mu.Unlock()

	// пул закрываем без mu: задачи в полёте сами его берут
	o.pool.Close()
	o.bg.Wait()
	o.logger.Infow("Оркестратор остановлен")
}

// State текущее состояние.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Selection позиция показанного варианта; ok=false вне Selecting.
func (o *Orchestrator) Selection() (index, total int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Selecting || o.sess == nil {
		return 0, 0, false
	}
	return o.sess.index, len(o.sess.candidates), true
}

func (o *Orchestrator) Triggers() trigger.Set {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.triggers
}

func (o *Orchestrator) ParagraphEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paragraph
}

// SetTrigger меняет один триггер. При ошибке текущий набор не меняется.
func (o *Orchestrator) SetTrigger(kind trigger.Kind, raw string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := o.triggers.With(kind, raw)
	if err != nil {
		return err
	}
	o.triggers = next
	o.logger.Infow("Триггер изменён", "kind", kind.String(), "combo", next.Get(kind).String())
	return nil
}

func (o *Orchestrator) SetCandidateCount(n int) error {
	if n < 1 || n > corrector.MaxCandidates {
		return fmt.Errorf("%w: candidate count must be in 1..%d, got %d", ErrInvalidSetting, corrector.MaxCandidates, n)
	}
	o.mu.Lock()
	o.count = n
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) SetCandidateSettings(s []corrector.CandidateSetting) error {
	if len(s) > corrector.MaxCandidates {
		return fmt.Errorf("%w: at most %d candidate settings, got %d", ErrInvalidSetting, corrector.MaxCandidates, len(s))
	}
	for i, c := range s {
		if c.Temperature < 0 || c.Temperature > 1 {
			return fmt.Errorf("%w: candidate %d temperature %.2f out of [0,1]", ErrInvalidSetting, i, c.Temperature)
		}
	}
	norm := corrector.NormalizeSettings(s)
	o.mu.Lock()
	o.candSettings = norm
	o.mu.Unlock()
	return nil
}

// SetParagraphEnabled выключенный режим пропускает триггер коррекции в приложение.
func (o *Orchestrator) SetParagraphEnabled(enabled bool) {
	o.mu.Lock()
	changed := o.paragraph != enabled
	o.paragraph = enabled
	ls := append([]func(bool){}, o.listeners...)
	o.mu.Unlock()
	if changed {
		o.notify(ls, enabled)
	}
}

// AddStatusListener вызывается при каждом переключении режима, в вызывающем потоке.
func (o *Orchestrator) AddStatusListener(fn func(enabled bool)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// ApplySettings применяет файл настроек целиком или не применяет ничего.
func (o *Orchestrator) ApplySettings(s settings.Settings) error {
	o.mu.Lock()
	before := o.paragraph
	err := o.applyLocked(s)
	after := o.paragraph
	ls := append([]func(bool){}, o.listeners...)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.logger.Infow("Настройки применены",
		"trigger", s.TriggerKey, "versions", s.VersionsPerCorrection, "paragraph", s.ParagraphEnabled)
	if before != after {
		o.notify(ls, after)
	}
	return nil
}

func (o *Orchestrator) apply(s settings.Settings) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.applyLocked(s)
}

func (o *Orchestrator) applyLocked(s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	set, err := s.Triggers()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}
	o.triggers = set
	o.count = s.VersionsPerCorrection
	o.candSettings = corrector.NormalizeSettings(s.CandidateSettings)
	o.paragraph = s.ParagraphEnabled
	return nil
}

func (o *Orchestrator) notify(ls []func(bool), enabled bool) {
	for _, fn := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Warnw("Паника в слушателе статуса", "panic", r)
				}
			}()
			fn(enabled)
		}()
	}
}

// OnDictationText надиктованный текст уже напечатан в окне, учитываем его в теневом буфере.
func (o *Orchestrator) OnDictationText(text string) {
	if text == "" {
		return
	}
	window := o.window()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffer.AddText(window, text)
}

// ClearBuffer то же, что триггер очистки.
func (o *Orchestrator) ClearBuffer() {
	window := o.window()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked(window)
}

func (o *Orchestrator) clearLocked(window uintptr) {
	o.resetLocked()
	o.baseline = ""
	o.accumulator = ""
	o.acceptedWindow = 0
	o.buffer.Clear(window)
	o.logger.Infow("Буфер абзацев очищен")
}

// resetLocked уничтожает сессию; результаты текущего запроса станут устаревшими.
func (o *Orchestrator) resetLocked() {
	o.state = Idle
	o.sess = nil
	o.token++
}

// Guard счётчик участков, где мы сами генерируем нажатия. Хук такие события пропускает.
type Guard struct{ depth atomic.Int32 }

func (g *Guard) Enter()       { g.depth.Add(1) }
func (g *Guard) Exit()        { g.depth.Add(-1) }
func (g *Guard) Active() bool { return g.depth.Load() > 0 }
