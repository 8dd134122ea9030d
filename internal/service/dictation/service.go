// Package dictation связывает внешнее приложение распознавания речи (Handy и подобные),
// которое вставляет распознанный текст через буфер обмена, с теневым буфером коррекции.
package dictation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrUnsupported = errors.New("dictation: clipboard watcher unavailable on this platform")

// Source источник изменений буфера обмена. Run блокируется до отмены ctx.
type Source interface {
	Run(ctx context.Context, out chan<- string) error
}

type Config struct {
	// Window сколько ещё принимаем текст после выключения: распознавание заканчивается позже
	Window time.Duration
}

// Service включается и выключается триггером диктовки. Пока включён, каждый новый
// текст в буфере обмена считается надиктованным.
type Service struct {
	cfg    Config
	src    Source
	logger *zap.SugaredLogger
	now    func() time.Time

	mu        sync.Mutex
	active    bool
	stoppedAt time.Time
	lastText  string
	onText    func(string)
	ignore    func() bool
}

func New(cfg Config, src Source, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &Service{cfg: cfg, src: src, logger: logger, now: time.Now}
}

// OnText получатель распознанного текста.
func (s *Service) OnText(fn func(text string)) {
	s.mu.Lock()
	s.onText = fn
	s.mu.Unlock()
}

// IgnoreWhile пока fn возвращает true, изменения буфера обмена делаем мы сами.
func (s *Service) IgnoreWhile(fn func() bool) {
	s.mu.Lock()
	s.ignore = fn
	s.mu.Unlock()
}

func (s *Service) Toggle() {
	s.mu.Lock()
	s.active = !s.active
	if !s.active {
		s.stoppedAt = s.now()
	}
	active := s.active
	s.mu.Unlock()
	s.logger.Infow("Диктовка переключена", "active", active)
}

func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run слушает источник до отмены ctx.
func (s *Service) Run(ctx context.Context) error {
	in := make(chan string, 64)
	errc := make(chan error, 1)
	go func() { errc <- s.src.Run(ctx, in) }()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-errc:
			return err
		case txt := <-in:
			s.handle(txt)
		}
	}
}

func (s *Service) handle(txt string) {
	s.mu.Lock()
	// повтор того же текста (например, восстановление буфера) не считаем
	if txt == s.lastText {
		s.mu.Unlock()
		return
	}
	s.lastText = txt
	if s.ignore != nil && s.ignore() {
		s.mu.Unlock()
		return
	}
	accept := s.active || (!s.stoppedAt.IsZero() && s.now().Sub(s.stoppedAt) < s.cfg.Window)
	fn := s.onText
	s.mu.Unlock()

	if !accept || strings.TrimSpace(txt) == "" || fn == nil {
		return
	}
	s.logger.Debugw("Надиктованный текст", "chars", len(txt))
	fn(txt)
}
