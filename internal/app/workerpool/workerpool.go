// Package workerpool ограниченный пул задач, которые нельзя выполнять в потоке хука.
package workerpool

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBusy   = errors.New("workerpool: all workers busy")
	ErrClosed = errors.New("workerpool: closed")
)

// DefaultSize два воркера: запрос коррекции и показ/навигация не ждут друг друга.
const DefaultSize = 2

type Pool struct {
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	g      errgroup.Group

	submitted atomic.Int64
}

func New(size int, logger *zap.SugaredLogger) *Pool {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{logger: logger}
	p.g.SetLimit(size)
	return p
}

// Submit не блокируется: если свободного воркера нет, сразу ErrBusy.
func (p *Pool) Submit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if !p.g.TryGo(func() error {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Errorw("Паника в задаче пула", "panic", r)
			}
		}()
		fn()
		return nil
	}) {
		return ErrBusy
	}
	p.submitted.Add(1)
	return nil
}

// Close запрещает новые задачи и ждёт текущие. Повторный вызов безопасен.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.g.Wait()
}

// Submitted сколько задач принято за всё время.
func (p *Pool) Submitted() int64 { return p.submitted.Load() }
