// Package corrector получает у AI-провайдера несколько вариантов исправления фрагмента текста.
// Про клавиатуру и окна ничего не знает.
package corrector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TextCorrector/internal/ai"
)

// Фиксированные параметры генерации.
const (
	TopP      = 0.95
	TopK      = 40
	MaxTokens = 512
)

var errEmptyResponse = errors.New("empty response")

// Candidate один вариант и настройки, с которыми он получен.
type Candidate struct {
	Text    string
	Index   int
	Setting CandidateSetting
}

// Recorder получает длительность и исход каждого запроса к провайдеру.
type Recorder interface {
	RecordProvider(ctx context.Context, d time.Duration, err error)
	RecordCandidates(ctx context.Context, n int)
}

type Options struct {
	// Timeout на один запрос к провайдеру.
	Timeout  time.Duration
	Recorder Recorder
}

type Engine struct {
	client  ai.Client
	logger  *zap.SugaredLogger
	timeout time.Duration
	rec     Recorder
}

func NewEngine(client ai.Client, opts Options, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Engine{client: client, logger: logger, timeout: opts.Timeout, rec: opts.Recorder}
}

// Correct запрашивает n вариантов параллельно. Ошибка одного варианта не роняет остальные.
// Результат никогда не пуст: если не удалось ничего, возвращается исходный текст.
func (e *Engine) Correct(ctx context.Context, text string, n int, settings []CandidateSetting) []Candidate {
	if strings.TrimSpace(text) == "" {
		return []Candidate{{Text: text}}
	}
	n = ClampCount(n)
	active := NormalizeSettings(settings)[:n]

	results := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	for i, s := range active {
		g.Go(func() error {
			out, err := e.generate(gctx, text, i, s)
			if err != nil {
				// ошибка варианта не должна отменять соседние запросы
				e.logger.Warnw("Вариант не получен", "index", i+1, "tone", s.Tone, "error", err)
				return nil
			}
			results[i] = out
			e.logger.Debugw("Вариант получен", "index", i+1, "of", n, "tone", s.Tone,
				"temperature", s.Temperature, "preview", preview(out))
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Candidate, 0, n)
	for i, r := range results {
		if r != "" {
			out = append(out, Candidate{Text: r, Index: i, Setting: active[i]})
		}
	}
	if e.rec != nil {
		e.rec.RecordCandidates(ctx, len(out))
	}
	if len(out) == 0 {
		e.logger.Errorw("Ни одного варианта, возвращаем исходный текст", "requested", n)
		return []Candidate{{Text: text, Setting: active[0]}}
	}
	return out
}

func (e *Engine) generate(ctx context.Context, text string, index int, s CandidateSetting) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, e.timeout, fmt.Errorf("candidate %d: provider timeout %s", index+1, e.timeout))
	defer cancel()

	start := time.Now()
	raw, err := e.client.Generate(ctx, BuildPrompt(text, s.Tone, index), ai.GenerateParams{
		Temperature:    s.Temperature,
		TopP:           TopP,
		TopK:           TopK,
		MaxTokens:      MaxTokens,
		CandidateCount: 1,
	})
	if err == nil && ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	if err == nil {
		raw = CleanResponse(raw)
		if raw == "" {
			err = errEmptyResponse
		}
	}
	if e.rec != nil {
		e.rec.RecordProvider(ctx, time.Since(start), err)
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80]) + "..."
}
