package notify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// SoundNotifier индикатор ожидания: короткий звук в начале запроса и по его завершении.
// Проигрывание асинхронное, ошибки только логируются.
type SoundNotifier struct {
	logger    *zap.SugaredLogger
	enabled   bool
	startPath string
	donePath  string
	ply       Player

	mu sync.Mutex // звуки не накладываются друг на друга
	wg sync.WaitGroup
}

type Options struct {
	Enabled   bool
	StartPath string
	DonePath  string
	VolumeDB  float64
	Player    Player
}

// NewSoundNotifier пустые пути заменяются на sound/loading_start.mp3 и sound/loading_done.mp3
// (сначала ищем рядом с бинарём).
func NewSoundNotifier(opts Options, logger *zap.SugaredLogger) *SoundNotifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	resolve := func(def string) string {
		if exe, err := os.Executable(); err == nil {
			cand := filepath.Join(filepath.Dir(exe), def)
			if _, statErr := os.Stat(cand); statErr == nil {
				return cand
			}
		}
		return filepath.FromSlash(def)
	}
	if strings.TrimSpace(opts.StartPath) == "" {
		opts.StartPath = resolve(filepath.Join("sound", "loading_start.mp3"))
	}
	if strings.TrimSpace(opts.DonePath) == "" {
		opts.DonePath = resolve(filepath.Join("sound", "loading_done.mp3"))
	}
	if opts.Player == nil {
		opts.Player = NewPlayer(opts.VolumeDB)
	}
	return &SoundNotifier{
		logger:    logger,
		enabled:   opts.Enabled,
		startPath: opts.StartPath,
		donePath:  opts.DonePath,
		ply:       opts.Player,
	}
}

func (n *SoundNotifier) StartLoading() { n.playAsync(n.startPath) }

func (n *SoundNotifier) StopLoading() { n.playAsync(n.donePath) }

// Wait дожидается всех начатых звуков.
func (n *SoundNotifier) Wait() { n.wg.Wait() }

func (n *SoundNotifier) playAsync(path string) {
	if !n.enabled {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		n.play(path)
	}()
}

func (n *SoundNotifier) play(path string) {
	f, err := os.Open(path)
	if err != nil {
		n.logger.Warnw("Не удалось открыть звуковой файл", "path", path, "error", err)
		return
	}
	defer f.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		ext = "mp3" // по умолчанию
	}
	if err := n.ply.Play(ext, f); err != nil {
		n.logger.Warnw("Не удалось воспроизвести звук", "path", path, "error", err)
	}
}
