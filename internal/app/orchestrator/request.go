package orchestrator

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/service/textbridge"
)

const historyTimeout = 5 * time.Second

// beginLocked Idle/Selecting -> Pending. Сам запрос уходит в пул.
func (o *Orchestrator) beginLocked(window uintptr) {
	o.token++
	tok := o.token
	o.state = Pending
	o.sess = &session{token: tok, window: window}
	if err := o.pool.Submit(func() { o.runRequest(tok) }); err != nil {
		o.logger.Warnw("Не удалось поставить коррекцию в очередь", "error", err)
		o.state = Idle
		o.sess = nil
		o.reject("busy")
	}
}

// currentLocked сессия всё ещё та, для которой шла работа.
func (o *Orchestrator) currentLocked(tok uint64) bool {
	return o.sess != nil && o.sess.token == tok && o.running.Load()
}

// abort Pending -> Idle без видимых изменений.
func (o *Orchestrator) abort(tok uint64, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(tok) {
		return
	}
	o.state = Idle
	o.sess = nil
	o.reject(reason)
}

func (o *Orchestrator) runRequest(tok uint64) {
	defer o.recoverTask(tok)

	o.mu.Lock()
	if !o.currentLocked(tok) {
		o.mu.Unlock()
		return
	}
	window := o.sess.window
	shadow := o.buffer.Get(window)
	if o.accumulator != "" && window == o.acceptedWindow && strings.TrimSpace(shadow) != "" &&
		!strings.HasPrefix(shadow, o.accumulator) {
		shadow = o.accumulator + shadow
	}
	o.mu.Unlock()

	text := shadow
	var control textbridge.Control
	if strings.TrimSpace(text) == "" {
		o.logger.Debugw("Теневой буфер пуст, читаем текст из окна")
		var ok bool
		o.withGuard(func() { text, control, ok = o.bridge.ReadActive() })
		if !ok || strings.TrimSpace(text) == "" {
			o.logger.Infow("Текст для коррекции не найден")
			o.abort(tok, "read_failed")
			return
		}
	}
	if n := utf8.RuneCountInString(text); n > o.maxTextLength {
		o.logger.Warnw("Текст слишком длинный", "chars", n, "max", o.maxTextLength)
		o.abort(tok, "too_long")
		return
	}

	o.mu.Lock()
	if !o.currentLocked(tok) {
		o.mu.Unlock()
		return
	}
	d, keep := delta(text, o.baseline)
	if !keep {
		o.baseline = ""
	}
	payload := strings.TrimSpace(d)
	if payload == "" {
		o.logger.Debugw("Нового текста после принятой правки нет")
		o.state = Idle
		o.sess = nil
		o.reject("empty")
		o.mu.Unlock()
		return
	}
	s := o.sess
	s.control = control
	s.region = d
	s.prefix = text[:len(text)-len(d)]
	s.suffix = ""
	n := o.count
	cfg := append(o.candSettings[:0:0], o.candSettings...)
	o.mu.Unlock()

	o.logger.Infow("Запрос коррекции", "chars", len(payload), "versions", n, "text", preview(payload))
	if o.metrics != nil {
		o.metrics.CorrectionRequested()
	}
	cands := o.correct(payload, n, cfg)

	if len(cands) == 0 || (len(cands) == 1 && cands[0].Text == payload) {
		o.logger.Infow("Вариантов для показа нет", "received", len(cands))
		o.abort(tok, "no_candidates")
		return
	}

	o.mu.Lock()
	if !o.currentLocked(tok) {
		o.mu.Unlock()
		o.logger.Debugw("Результат устаревшей сессии отброшен", "token", tok)
		return
	}
	s.candidates = cands
	s.index = 0
	o.mu.Unlock()

	o.logger.Infow("Получены варианты", "total", len(cands))
	o.show(tok)
}

// show записывает в окно текущий вариант сессии. Первый удачный показ
// переводит Pending -> Selecting.
func (o *Orchestrator) show(tok uint64) {
	defer o.recoverTask(tok)

	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.mu.Lock()
	if !o.currentLocked(tok) || o.state == Idle || len(o.sess.candidates) == 0 {
		o.mu.Unlock()
		return
	}
	s := o.sess
	idx := s.index
	text := s.render(idx)
	control := s.control
	first := s.displayed == ""
	o.mu.Unlock()

	var ok bool
	o.withGuard(func() { ok = o.bridge.WriteActive(text, control) })

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(tok) {
		return
	}
	if !ok {
		o.logger.Warnw("Не удалось записать вариант в окно", "index", idx+1)
		if first {
			// ничего не показано, выбирать нечего
			o.state = Idle
			o.sess = nil
			o.reject("write_failed")
		}
		return
	}
	s.displayed = text
	s.shown = idx
	o.state = Selecting
	o.buffer.Set(s.window, text)
	o.logger.Infow("Показан вариант", "index", idx+1, "total", len(s.candidates), "text", preview(s.candidates[idx].Text))
}

// correct звук ожидания гаснет и при панике движка.
func (o *Orchestrator) correct(text string, n int, cfg []corrector.CandidateSetting) []corrector.Candidate {
	if o.loading != nil {
		o.loading.StartLoading()
		defer o.loading.StopLoading()
	}
	return unique(o.engine.Correct(o.ctx, text, n, cfg))
}

// recoverTask паника в задаче пула уничтожает её сессию, иначе Pending остался бы навсегда.
// Вызывается только через defer, mu в этот момент не удерживается.
func (o *Orchestrator) recoverTask(tok uint64) {
	r := recover()
	if r == nil {
		return
	}
	o.logger.Errorw("Паника в задаче коррекции, сессия сброшена", "panic", r, "token", tok)
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(tok) {
		return
	}
	o.resetLocked()
	o.reject("panic")
}

// acceptLocked Selecting -> Idle: показанный текст становится новым baseline.
func (o *Orchestrator) acceptLocked() {
	s := o.sess
	if s == nil || s.displayed == "" {
		o.resetLocked()
		return
	}
	final := s.displayed
	cand := s.candidates[s.shown]
	original := strings.TrimSpace(s.region)

	o.baseline = final
	o.accumulator = final
	o.acceptedWindow = s.window
	o.buffer.Clear(s.window)
	o.resetLocked()

	if o.metrics != nil {
		o.metrics.CorrectionAccepted()
	}
	o.logger.Infow("Вариант принят", "index", s.shown+1, "total", len(s.candidates), "baseline_chars", len(final))

	if o.history != nil {
		idx, total := s.shown, len(s.candidates)
		o.bg.Add(1)
		go func() {
			defer o.bg.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), historyTimeout)
			defer cancel()
			if err := o.history.AddCorrection(ctx, original, cand.Text, idx, total); err != nil {
				o.logger.Warnw("Не удалось сохранить коррекцию в историю", "error", err)
			}
		}()
	}
}

// withGuard синтетические нажатия моста не должны попасть обратно в обработчик.
func (o *Orchestrator) withGuard(fn func()) {
	o.guard.Enter()
	defer func() {
		if o.settle > 0 {
			time.Sleep(o.settle)
		}
		o.guard.Exit()
	}()
	fn()
}
