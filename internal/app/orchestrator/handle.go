package orchestrator

import (
	"TextCorrector/internal/service/keyboard"
	"TextCorrector/internal/trigger"
)

// Клавиши, которые не завершают выбор варианта.
var passiveKeys = map[string]struct{}{
	"shift": {}, "ctrl": {}, "alt": {},
	"left shift": {}, "right shift": {}, "left ctrl": {}, "right ctrl": {},
	"left alt": {}, "right alt": {}, "left windows": {}, "right windows": {},
	"caps lock": {}, "num lock": {}, "scroll lock": {}, "pause": {}, "print screen": {},
}

// HandleKey обработчик глобального хука. Только классифицирует событие и ставит
// работу в пул; true — событие не доходит до приложения.
// Паника внутри сбрасывает состояние в Idle: клавиатура не должна остаться заблокированной.
func (o *Orchestrator) HandleKey(ev keyboard.Event) (suppress bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("Паника в обработчике клавиш, состояние сброшено", "panic", r, "key", ev.Key)
			o.mu.Lock()
			o.resetLocked()
			o.mu.Unlock()
			suppress = false
		}
	}()
	if !ev.Down || ev.Injected || !o.running.Load() || o.guard.Active() {
		return false
	}
	window := ev.Window
	if window == 0 {
		window = o.window()
	}
	return o.handleKey(ev, window)
}

func (o *Orchestrator) handleKey(ev keyboard.Event, window uintptr) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.buffer.Focus(window)
	trig := o.triggers

	if trig.Dictation.Matches(ev.Key, ev.Mods) {
		if o.dictation == nil {
			return false
		}
		go o.dictation.Toggle()
		return true
	}
	if !trig.ClearBuffer.IsZero() && trig.ClearBuffer.Matches(ev.Key, ev.Mods) {
		o.clearLocked(window)
		return true
	}

	isTrigger := trig.Correction.Matches(ev.Key, ev.Mods)
	isNav := ev.Mods.Has(trigger.ModCtrl) && (ev.Key == "left" || ev.Key == "right")

	if o.state == Selecting {
		switch {
		case isNav:
			dir := 1
			if ev.Key == "left" {
				dir = -1
			}
			o.navigateLocked(dir)
			return true
		case isTrigger:
			// триггер всегда принимает вариант и не доходит до приложения
			o.acceptLocked()
			if o.paragraph {
				o.beginLocked(window)
			}
			return true
		}
		if _, passive := passiveKeys[ev.Key]; passive {
			return false
		}
		o.acceptLocked()
		o.feedLocked(ev, window, false)
		return false
	}

	if isTrigger && o.paragraph {
		if o.state == Pending {
			o.logger.Debugw("Коррекция уже выполняется, триггер проигнорирован")
			o.reject("busy")
			return true
		}
		o.beginLocked(window)
		return true
	}

	o.feedLocked(ev, window, isNav)
	return false
}

// feedLocked обычный набор текста попадает в теневой буфер. Сочетания с Ctrl/Alt
// текст не печатают.
func (o *Orchestrator) feedLocked(ev keyboard.Event, window uintptr, isNav bool) {
	ctrl, alt := ev.Mods.Has(trigger.ModCtrl), ev.Mods.Has(trigger.ModAlt)
	switch {
	case isNav:
		o.buffer.ResetOnNavigation(window)
		return
	case ctrl && ev.Key == "backspace":
		// удалено слово, сколько именно — не знаем
		o.buffer.ResetOnNavigation(window)
		return
	case (ctrl || alt) && ev.Char == "":
		return
	}

	isBackspace := ev.Key == "backspace"
	if isBackspace && window == o.acceptedWindow && o.accumulator != "" && o.buffer.Get(window) == "" {
		// стирают уже принятый текст
		o.accumulator = dropLastRune(o.accumulator)
		o.baseline = o.accumulator
		return
	}
	o.buffer.OnKey(window, ev.Printable(), isBackspace)
}

func (o *Orchestrator) navigateLocked(dir int) {
	s := o.sess
	n := len(s.candidates)
	if n == 0 {
		return
	}
	prev := s.index
	s.index = ((s.index+dir)%n + n) % n
	if n == 1 {
		return
	}
	tok := s.token
	if err := o.pool.Submit(func() { o.show(tok) }); err != nil {
		s.index = prev
		o.logger.Warnw("Не удалось переключить вариант", "error", err)
		return
	}
	o.logger.Debugw("Переключение варианта", "index", s.index+1, "total", n)
}

func (o *Orchestrator) reject(reason string) {
	if o.metrics != nil {
		o.metrics.CorrectionRejected(reason)
	}
}
