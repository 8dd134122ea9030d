package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TextCorrector/internal/adapter/settings"
	"TextCorrector/internal/app/workerpool"
	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/service/keyboard"
	"TextCorrector/internal/service/keystroke"
	"TextCorrector/internal/service/textbridge"
	"TextCorrector/internal/trigger"
)

const win1 uintptr = 7

type fakeListener struct {
	mu           sync.Mutex
	h            keyboard.Handler
	unsubscribed int
}

func (l *fakeListener) Subscribe(h keyboard.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h = h
	return nil
}

func (l *fakeListener) Unsubscribe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h = nil
	l.unsubscribed++
}

type fakeBridge struct {
	mu       sync.Mutex
	readText string
	readOK   bool
	writeOK  bool
	reads    int
	writes   []string
	hints    []textbridge.Control
}

func (b *fakeBridge) ReadActive() (string, textbridge.Control, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	return b.readText, 42, b.readOK
}

func (b *fakeBridge) WriteActive(text string, hint textbridge.Control) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, text)
	b.hints = append(b.hints, hint)
	return b.writeOK
}

func (b *fakeBridge) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.writes) == 0 {
		return ""
	}
	return b.writes[len(b.writes)-1]
}

func (b *fakeBridge) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	reply func(text string, n int) []string
}

func (e *fakeEngine) Correct(_ context.Context, text string, n int, _ []corrector.CandidateSetting) []corrector.Candidate {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	reply := e.reply
	e.mu.Unlock()
	var out []corrector.Candidate
	for i, t := range reply(text, n) {
		out = append(out, corrector.Candidate{Text: t, Index: i})
	}
	return out
}

func (e *fakeEngine) requests() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// manualPool задачи выполняются только по drain, в потоке теста.
type manualPool struct {
	mu        sync.Mutex
	queue     []func()
	submitted int
	closed    bool
}

func (p *manualPool) Submit(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return workerpool.ErrClosed
	}
	p.queue = append(p.queue, fn)
	p.submitted++
	return nil
}

func (p *manualPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *manualPool) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		fn()
	}
}

type histRecord struct {
	original, corrected string
	index, total        int
}

type fakeHistory struct {
	mu   sync.Mutex
	recs []histRecord
}

func (h *fakeHistory) AddCorrection(_ context.Context, original, corrected string, idx, total int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, histRecord{original, corrected, idx, total})
	return nil
}

func (h *fakeHistory) records() []histRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]histRecord(nil), h.recs...)
}

type countingLoading struct{ start, stop atomic.Int32 }

func (l *countingLoading) StartLoading() { l.start.Add(1) }
func (l *countingLoading) StopLoading()  { l.stop.Add(1) }

type fakeDictation struct{ toggled chan struct{} }

func (d *fakeDictation) Toggle() { d.toggled <- struct{}{} }

type fakeMetrics struct {
	mu       sync.Mutex
	rejected []string
}

func (m *fakeMetrics) CorrectionRequested() {}
func (m *fakeMetrics) CorrectionAccepted()  {}
func (m *fakeMetrics) CorrectionRejected(reason string) {
	m.mu.Lock()
	m.rejected = append(m.rejected, reason)
	m.mu.Unlock()
}

type env struct {
	o        *Orchestrator
	listener *fakeListener
	bridge   *fakeBridge
	engine   *fakeEngine
	pool     *manualPool
	buffer   *keystroke.Buffer
	history  *fakeHistory
	loading  *countingLoading
	metrics  *fakeMetrics
}

func newEnv(t *testing.T, mutate func(*Deps, *Options)) *env {
	t.Helper()
	e := &env{
		listener: &fakeListener{},
		bridge:   &fakeBridge{writeOK: true},
		engine:   &fakeEngine{reply: func(text string, _ int) []string { return []string{text} }},
		pool:     &manualPool{},
		buffer:   keystroke.New(keystroke.Config{}, nil),
		history:  &fakeHistory{},
		loading:  &countingLoading{},
		metrics:  &fakeMetrics{},
	}
	deps := Deps{
		Listener: e.listener,
		Bridge:   e.bridge,
		Engine:   e.engine,
		Buffer:   e.buffer,
		Pool:     e.pool,
		Window:   func() uintptr { return win1 },
		History:  e.history,
		Loading:  e.loading,
		Metrics:  e.metrics,
	}
	opts := Options{}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	e.o = New(deps, opts)
	require.NoError(t, e.o.Start())
	t.Cleanup(e.o.Stop)
	return e
}

func key(name string, mods trigger.Modifiers) keyboard.Event {
	return keyboard.Event{Key: name, Down: true, Mods: mods, Window: win1}
}

func (e *env) press(name string, mods trigger.Modifiers) bool {
	return e.o.HandleKey(key(name, mods))
}

func (e *env) trigger() bool { return e.press("space", trigger.ModCtrl) }

func (e *env) typeText(s string) {
	for _, r := range s {
		ev := keyboard.Event{Key: strings.ToLower(string(r)), Char: string(r), Down: true, Window: win1}
		if r == ' ' {
			ev = keyboard.Event{Key: "space", Down: true, Window: win1}
		}
		e.o.HandleKey(ev)
	}
}

// selectHelloWorld доводит сессию до Selecting с двумя вариантами.
func (e *env) selectHelloWorld(t *testing.T) {
	t.Helper()
	e.engine.reply = func(string, int) []string { return []string{"Hello world", "Hello, world!"} }
	require.NoError(t, e.o.SetCandidateCount(2))
	e.buffer.Set(win1, "Helo wrld")
	require.True(t, e.trigger())
	require.Equal(t, Pending, e.o.State())
	e.pool.drain()
	require.Equal(t, Selecting, e.o.State())
}

func TestCorrectionAndNavigation(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)

	assert.Equal(t, []string{"Helo wrld"}, e.engine.requests())
	assert.Equal(t, "Hello world", e.bridge.last())
	assert.Equal(t, "Hello world", e.buffer.Get(win1))
	idx, total, ok := e.o.Selection()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2, total)

	assert.True(t, e.press("right", trigger.ModCtrl))
	e.pool.drain()
	assert.Equal(t, "Hello, world!", e.bridge.last())
	idx, _, _ = e.o.Selection()
	assert.Equal(t, 1, idx)

	assert.True(t, e.press("right", trigger.ModCtrl))
	e.pool.drain()
	assert.Equal(t, "Hello world", e.bridge.last())
	idx, _, _ = e.o.Selection()
	assert.Equal(t, 0, idx)

	assert.True(t, e.press("left", trigger.ModCtrl))
	e.pool.drain()
	assert.Equal(t, "Hello, world!", e.bridge.last())

	assert.Equal(t, int32(1), e.loading.start.Load())
	assert.Equal(t, int32(1), e.loading.stop.Load())
}

func TestAcceptSendsOnlyDelta(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)

	// первая же печатная клавиша принимает вариант и уходит в приложение
	assert.False(t, e.press("space", 0))
	assert.Equal(t, Idle, e.o.State())
	e.typeText("how are you")
	assert.Equal(t, " how are you", e.buffer.Get(win1))

	e.engine.reply = func(text string, _ int) []string { return []string{"How are you?"} }
	require.True(t, e.trigger())
	e.pool.drain()

	reqs := e.engine.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "how are you", reqs[1])
	assert.Equal(t, "Hello world How are you?", e.bridge.last())

	require.Eventually(t, func() bool { return len(e.history.records()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, histRecord{"Helo wrld", "Hello world", 0, 2}, e.history.records()[0])
}

func TestTriggerWhileSelectingAcceptsAndRestarts(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)
	require.True(t, e.press("right", trigger.ModCtrl))
	e.pool.drain()

	e.bridge.readText, e.bridge.readOK = "Hello, world!", true
	assert.True(t, e.trigger())
	assert.Equal(t, Pending, e.o.State())
	e.pool.drain()

	// буфер очищен принятием, текст окна совпал с baseline: новой дельты нет
	assert.Equal(t, 1, e.bridge.reads)
	assert.Equal(t, Idle, e.o.State())
	assert.Len(t, e.engine.requests(), 1)
	require.Eventually(t, func() bool { return len(e.history.records()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, histRecord{"Helo wrld", "Hello, world!", 1, 2}, e.history.records()[0])
}

func TestSecondTriggerWhilePendingIsRejected(t *testing.T) {
	release := make(chan struct{})
	pool := workerpool.New(workerpool.DefaultSize, nil)
	e := newEnv(t, func(d *Deps, _ *Options) { d.Pool = pool })
	e.engine.reply = func(text string, _ int) []string {
		<-release
		return []string{"Fixed"}
	}
	e.buffer.Set(win1, "broken text")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, e.trigger())
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), pool.Submitted())
	assert.Equal(t, Pending, e.o.State())

	close(release)
	require.Eventually(t, func() bool { return e.o.State() == Selecting }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Fixed", e.bridge.last())
	assert.Equal(t, int64(1), pool.Submitted())
}

func TestLateResultIsDiscarded(t *testing.T) {
	e := newEnv(t, nil)
	e.engine.reply = func(string, int) []string {
		// пользователь очистил буфер, пока ждали провайдера
		e.o.ClearBuffer()
		return []string{"Too late"}
	}
	e.buffer.Set(win1, "some text")
	require.True(t, e.trigger())
	e.pool.drain()

	assert.Equal(t, Idle, e.o.State())
	assert.Zero(t, e.bridge.writeCount())
}

func TestClearBeforeRequestRuns(t *testing.T) {
	e := newEnv(t, nil)
	e.buffer.Set(win1, "some text")
	require.True(t, e.trigger())
	assert.True(t, e.press("delete", trigger.ModCtrl|trigger.ModShift))
	assert.Equal(t, Idle, e.o.State())
	e.pool.drain()

	assert.Empty(t, e.engine.requests())
	assert.Empty(t, e.buffer.Get(win1))
}

func TestPanicInHandlerResetsToIdle(t *testing.T) {
	var explode atomic.Bool
	e := newEnv(t, func(d *Deps, _ *Options) {
		d.Window = func() uintptr {
			if explode.Load() {
				panic("boom")
			}
			return win1
		}
	})
	e.selectHelloWorld(t)

	explode.Store(true)
	suppress := e.o.HandleKey(keyboard.Event{Key: "a", Char: "a", Down: true})
	assert.False(t, suppress)
	assert.Equal(t, Idle, e.o.State())
	_, _, ok := e.o.Selection()
	assert.False(t, ok)
}

func TestSuppressionPolicy(t *testing.T) {
	e := newEnv(t, nil)

	assert.False(t, e.o.HandleKey(keyboard.Event{Key: "a", Char: "a", Down: true, Window: win1}))
	assert.False(t, e.press("c", trigger.ModCtrl), "shortcuts pass through")
	assert.False(t, e.o.HandleKey(keyboard.Event{Key: "space", Mods: trigger.ModCtrl, Window: win1}), "key up")
	assert.Equal(t, "a", e.buffer.Get(win1))

	e.selectHelloWorld(t)
	assert.False(t, e.press("shift", trigger.ModShift))
	assert.Equal(t, Selecting, e.o.State(), "modifiers do not end selection")
	assert.True(t, e.press("right", trigger.ModCtrl))

	assert.False(t, e.press("enter", 0))
	assert.Equal(t, Idle, e.o.State())
}

func TestInjectedAndGuardedEventsIgnored(t *testing.T) {
	g := &Guard{}
	e := newEnv(t, func(d *Deps, _ *Options) { d.Guard = g })

	assert.False(t, e.o.HandleKey(keyboard.Event{Key: "x", Char: "x", Down: true, Window: win1, Injected: true}))
	g.Enter()
	assert.False(t, e.trigger())
	e.typeText("ab")
	g.Exit()

	assert.Empty(t, e.buffer.Get(win1))
	assert.Zero(t, e.pool.submitted)
}

func TestClearBufferResetsBaseline(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)
	assert.False(t, e.press("space", 0))

	assert.True(t, e.press("delete", trigger.ModCtrl|trigger.ModShift))
	assert.Empty(t, e.buffer.Get(win1))

	e.engine.reply = func(text string, _ int) []string { return []string{strings.ToUpper(text)} }
	e.buffer.Set(win1, "Hello world again")
	require.True(t, e.trigger())
	e.pool.drain()
	assert.Equal(t, "Hello world again", e.engine.requests()[1])
	assert.Equal(t, "HELLO WORLD AGAIN", e.bridge.last())
}

func TestBackspaceAfterAcceptTrimsAcceptedText(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)
	assert.False(t, e.press("backspace", 0))
	e.typeText("d")

	e.engine.reply = func(string, int) []string { return []string{"D"} }
	require.True(t, e.trigger())
	e.pool.drain()
	assert.Equal(t, "d", e.engine.requests()[1])
	assert.Equal(t, "Hello worlD", e.bridge.last())
}

func TestParagraphDisabled(t *testing.T) {
	e := newEnv(t, nil)
	var got []bool
	e.o.AddStatusListener(func(enabled bool) { got = append(got, enabled) })

	e.o.SetParagraphEnabled(false)
	e.o.SetParagraphEnabled(false)
	e.buffer.Set(win1, "text")
	assert.False(t, e.trigger())
	assert.Zero(t, e.pool.submitted)

	e.o.SetParagraphEnabled(true)
	assert.Equal(t, []bool{false, true}, got)
	assert.True(t, e.trigger())
}

func TestTextTooLong(t *testing.T) {
	e := newEnv(t, func(_ *Deps, o *Options) { o.MaxTextLength = 5 })
	e.buffer.Set(win1, "way too long")
	require.True(t, e.trigger())
	e.pool.drain()

	assert.Empty(t, e.engine.requests())
	assert.Equal(t, Idle, e.o.State())
	assert.Equal(t, []string{"too_long"}, e.metrics.rejected)
}

func TestReadFallbackPassesControlHint(t *testing.T) {
	e := newEnv(t, nil)
	e.bridge.readText, e.bridge.readOK = "Helo wrld\n", true
	e.engine.reply = func(string, int) []string { return []string{"Hello world"} }

	require.True(t, e.trigger())
	e.pool.drain()

	assert.Equal(t, []string{"Helo wrld"}, e.engine.requests())
	assert.Equal(t, "Hello world\n", e.bridge.last(), "surrounding whitespace is kept")
	assert.Equal(t, textbridge.Control(42), e.bridge.hints[0])
}

func TestNothingToShow(t *testing.T) {
	cases := []struct {
		name   string
		reply  []string
		reason string
	}{
		{"empty and unchanged", []string{"", "  ", "Helo wrld"}, "no_candidates"},
		{"nothing", nil, "no_candidates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, nil)
			e.engine.reply = func(string, int) []string { return tc.reply }
			e.buffer.Set(win1, "Helo wrld")
			require.True(t, e.trigger())
			e.pool.drain()

			assert.Equal(t, Idle, e.o.State())
			assert.Zero(t, e.bridge.writeCount())
			assert.Equal(t, []string{tc.reason}, e.metrics.rejected)
		})
	}
}

func TestDuplicatesCollapsed(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, e.o.SetCandidateCount(3))
	e.engine.reply = func(string, int) []string { return []string{"Fine", " Fine ", "Fine."} }
	e.buffer.Set(win1, "fine")
	require.True(t, e.trigger())
	e.pool.drain()

	_, total, ok := e.o.Selection()
	require.True(t, ok)
	assert.Equal(t, 2, total)
}

func TestFailedFirstWriteReturnsToIdle(t *testing.T) {
	e := newEnv(t, nil)
	e.bridge.writeOK = false
	e.engine.reply = func(string, int) []string { return []string{"Hello"} }
	e.buffer.Set(win1, "helo")
	require.True(t, e.trigger())
	e.pool.drain()

	assert.Equal(t, Idle, e.o.State())
	assert.Equal(t, "helo", e.buffer.Get(win1))
	assert.Equal(t, []string{"write_failed"}, e.metrics.rejected)
}

func TestSettersRejectInvalidInput(t *testing.T) {
	e := newEnv(t, nil)
	before := e.o.Triggers()

	assert.ErrorIs(t, e.o.SetTrigger(trigger.KindCorrection, "ctrl+shift+d"), trigger.ErrCollision)
	assert.ErrorIs(t, e.o.SetTrigger(trigger.KindCorrection, "ctrl+banana"), trigger.ErrInvalid)
	assert.Equal(t, before, e.o.Triggers())

	require.NoError(t, e.o.SetTrigger(trigger.KindCorrection, "Control+Enter"))
	assert.Equal(t, "ctrl+enter", e.o.Triggers().Correction.String())

	assert.ErrorIs(t, e.o.SetCandidateCount(0), ErrInvalidSetting)
	assert.ErrorIs(t, e.o.SetCandidateCount(corrector.MaxCandidates+1), ErrInvalidSetting)
	assert.ErrorIs(t, e.o.SetCandidateSettings([]corrector.CandidateSetting{{Temperature: 1.5}}), ErrInvalidSetting)
	assert.NoError(t, e.o.SetCandidateSettings([]corrector.CandidateSetting{{Tone: corrector.ToneCreative, Temperature: 0.9}}))
}

func TestApplySettings(t *testing.T) {
	e := newEnv(t, nil)
	var got []bool
	e.o.AddStatusListener(func(enabled bool) { got = append(got, enabled) })

	bad := settings.Defaults()
	bad.TriggerKey = bad.DictationTriggerKey
	assert.ErrorIs(t, e.o.ApplySettings(bad), ErrInvalidSetting)
	assert.Equal(t, trigger.DefaultCorrection, e.o.Triggers().Correction.String())

	s := settings.Defaults()
	s.TriggerKey = "ctrl+f9"
	s.ParagraphEnabled = false
	require.NoError(t, e.o.ApplySettings(s))
	assert.Equal(t, "ctrl+f9", e.o.Triggers().Correction.String())
	assert.False(t, e.o.ParagraphEnabled())
	assert.Equal(t, []bool{false}, got)
}

func TestDictation(t *testing.T) {
	d := &fakeDictation{toggled: make(chan struct{}, 1)}
	e := newEnv(t, func(deps *Deps, _ *Options) { deps.Dictation = d })

	assert.True(t, e.press("d", trigger.ModCtrl|trigger.ModShift))
	select {
	case <-d.toggled:
	case <-time.After(time.Second):
		t.Fatal("dictation was not toggled")
	}
	assert.Equal(t, Idle, e.o.State())

	e.typeText("I said ")
	e.o.OnDictationText("hello")
	assert.Equal(t, "I said hello", e.buffer.Get(win1))
}

func TestStopIsIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)

	e.o.Stop()
	e.o.Stop()
	assert.Equal(t, 1, e.listener.unsubscribed)
	assert.True(t, e.pool.closed)
	assert.Equal(t, Idle, e.o.State())
	assert.False(t, e.trigger())
}

func TestEnginePanicReturnsToIdle(t *testing.T) {
	pool := workerpool.New(2, nil)
	e := newEnv(t, func(d *Deps, _ *Options) { d.Pool = pool })
	var calls atomic.Int32
	e.engine.reply = func(text string, _ int) []string {
		if calls.Add(1) == 1 {
			panic("provider exploded")
		}
		return []string{"Fixed text"}
	}
	e.buffer.Set(win1, "broken text")

	require.True(t, e.trigger())
	require.Eventually(t, func() bool { return e.o.State() == Idle }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.loading.stop.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), e.loading.start.Load())

	e.metrics.mu.Lock()
	assert.Equal(t, []string{"panic"}, e.metrics.rejected)
	e.metrics.mu.Unlock()

	// следующий триггер работает как обычно
	require.True(t, e.trigger())
	require.Eventually(t, func() bool { return e.o.State() == Selecting }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Fixed text", e.bridge.last())
}

func TestBridgePanicDuringShowReturnsToIdle(t *testing.T) {
	e := newEnv(t, func(d *Deps, _ *Options) { d.Bridge = panickyBridge{} })
	e.engine.reply = func(string, int) []string { return []string{"Fixed text"} }
	e.buffer.Set(win1, "broken text")

	require.True(t, e.trigger())
	e.pool.drain()
	assert.Equal(t, Idle, e.o.State())
	_, _, ok := e.o.Selection()
	assert.False(t, ok)
}

type panickyBridge struct{}

func (panickyBridge) ReadActive() (string, textbridge.Control, bool) { return "", 0, false }
func (panickyBridge) WriteActive(string, textbridge.Control) bool { panic("window vanished") }

func TestTriggerAcceptsWhileSelectingWithParagraphOff(t *testing.T) {
	e := newEnv(t, nil)
	e.selectHelloWorld(t)
	e.o.SetParagraphEnabled(false)

	assert.True(t, e.trigger(), "trigger must not reach the application")
	assert.Equal(t, Idle, e.o.State())
	assert.Equal(t, 1, e.pool.submitted, "no new request without paragraph mode")
	require.Eventually(t, func() bool { return len(e.history.records()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hello world", e.history.records()[0].corrected)
}
