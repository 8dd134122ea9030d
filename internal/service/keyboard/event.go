// Package keyboard глобальный перехват клавиатуры: события нажатий всех окон
// и возможность «проглотить» нажатие до того, как его увидит приложение.
package keyboard

import (
	"errors"

	"TextCorrector/internal/trigger"
)

var (
	ErrUnsupported       = errors.New("keyboard: global hook not supported on this platform")
	ErrAlreadySubscribed = errors.New("keyboard: handler already subscribed")
)

// Event одно нажатие или отпускание клавиши.
type Event struct {
	Key      string // базовое имя клавиши ("a", "space", "backspace", "f5")
	Char     string // напечатанный символ с учётом раскладки; пусто для служебных клавиш
	Down     bool
	Mods     trigger.Modifiers
	Window   uintptr // активное окно на момент события
	Injected bool    // событие сгенерировано программно
}

// Printable что добавить в теневой буфер: символ, если он есть, иначе имя клавиши.
func (e Event) Printable() string {
	if e.Char != "" {
		return e.Char
	}
	return e.Key
}

// Handler вызывается в потоке хука; true — подавить событие.
// Должен возвращаться быстро: ОС снимает медленные хуки.
type Handler func(Event) bool

type Listener interface {
	Subscribe(h Handler) error
	Unsubscribe()
}

// dispatcher общая для платформ логика: инжектированные события не трогаем,
// подавленный keydown подавляет и соответствующий keyup.
type dispatcher struct {
	swallowed map[uint32]bool
	onPanic   func(any)
}

func newDispatcher(onPanic func(any)) *dispatcher {
	return &dispatcher{swallowed: make(map[uint32]bool), onPanic: onPanic}
}

func (d *dispatcher) dispatch(vk uint32, ev Event, h Handler) bool {
	if ev.Injected || h == nil {
		return false
	}
	if !ev.Down && d.swallowed[vk] {
		delete(d.swallowed, vk)
		return true
	}
	suppress := d.call(ev, h)
	if ev.Down {
		if suppress {
			d.swallowed[vk] = true
		} else {
			delete(d.swallowed, vk)
		}
	}
	return suppress
}

func (d *dispatcher) call(ev Event, h Handler) (suppress bool) {
	defer func() {
		if r := recover(); r != nil {
			suppress = false
			if d.onPanic != nil {
				d.onPanic(r)
			}
		}
	}()
	return h(ev)
}
