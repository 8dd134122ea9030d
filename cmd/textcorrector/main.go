package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TextCorrector/internal/adapter/history"
	"TextCorrector/internal/adapter/settings"
	"TextCorrector/internal/ai"
	"TextCorrector/internal/app/orchestrator"
	"TextCorrector/internal/app/workerpool"
	"TextCorrector/internal/config"
	"TextCorrector/internal/observe"
	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/service/dictation"
	"TextCorrector/internal/service/keyboard"
	"TextCorrector/internal/service/keystroke"
	"TextCorrector/internal/service/notify"
	"TextCorrector/internal/service/textbridge"
)

const version = "0.1.0"

func main() {
	cfg := config.NewConfig()

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	sugar.Infow(
		"Starting app",
		"DebugMode", cfg.DebugMode,
		"Provider", cfg.Provider,
		"Settings", cfg.SettingsPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Errorw("App stopped with error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	sugar.Infow("App stopped")
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	mp, shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "textcorrector",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			sugar.Warnw("Failed to shutdown metrics", "error", err)
		}
	}()
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return err
	}

	st, created, err := settings.LoadOrCreate(cfg.SettingsPath)
	if err != nil {
		// битый файл настроек не повод не стартовать
		sugar.Warnw("Настройки не прочитаны, используем значения по умолчанию", "path", cfg.SettingsPath, "error", err)
		st = settings.Defaults()
	} else if created {
		sugar.Infow("Создан файл настроек", "path", cfg.SettingsPath)
	}

	engine := corrector.NewEngine(newClient(cfg, sugar), corrector.Options{
		Timeout:  cfg.RequestTimeout,
		Recorder: metrics,
	}, sugar.Named("corrector"))

	guard := &orchestrator.Guard{}
	bridge := textbridge.New(textbridge.NewPlatform(), textbridge.Options{
		Guard:    guard,
		Recorder: metrics,
	}, sugar.Named("bridge"))

	buffer := keystroke.New(keystroke.Config{
		MaxChars:        cfg.BufferMaxChars,
		MaxWindows:      cfg.BufferMaxWindows,
		CleanupInterval: cfg.BufferCleanupInterval,
	}, sugar.Named("buffer"))

	sound := notify.NewSoundNotifier(notify.Options{
		Enabled:   cfg.LoadingSoundEnabled,
		StartPath: cfg.LoadingSoundPath,
		DonePath:  cfg.LoadingDoneSoundPath,
		VolumeDB:  cfg.LoadingSoundVolumeDB,
	}, sugar.Named("sound"))
	defer sound.Wait()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	g, gctx := errgroup.WithContext(ctx)

	deps := orchestrator.Deps{
		Listener: keyboard.NewHook(sugar.Named("hook")),
		Bridge:   bridge,
		Engine:   engine,
		Buffer:   buffer,
		Pool:     workerpool.New(workerpool.DefaultSize, sugar.Named("pool")),
		Guard:    guard,
		Loading:  sound,
		Metrics:  metrics,
		Logger:   sugar.Named("orchestrator"),
	}

	if cfg.HistoryEnabled {
		store, err := history.Open(cfg.HistoryPath, sugar.Named("history"))
		if err != nil {
			sugar.Warnw("История недоступна", "path", cfg.HistoryPath, "error", err)
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					sugar.Warnw("Failed to close history", "error", err)
				}
			}()
			deps.History = store
			g.Go(func() error {
				store.RunCleanup(gctx, cfg.HistoryCleanupInterval, cfg.HistoryRetention)
				return nil
			})
		}
	}

	var dict *dictation.Service
	if cfg.DictationEnabled {
		dict = dictation.New(dictation.Config{Window: cfg.DictationWindow},
			dictation.NewClipboardWatcher(sugar.Named("clipboard")), sugar.Named("dictation"))
		// вставки моста тоже меняют буфер обмена
		dict.IgnoreWhile(guard.Active)
		deps.Dictation = dict
	}

	o := orchestrator.New(deps, orchestrator.Options{
		Settings:      st,
		MaxTextLength: cfg.MaxTextLength,
		SettleDelay:   cfg.SettleDelay,
	})
	o.AddStatusListener(func(enabled bool) {
		sugar.Infow("Коррекция абзаца", "enabled", enabled)
	})

	if dict != nil {
		dict.OnText(o.OnDictationText)
		g.Go(func() error {
			if err := dict.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				// без диктовки приложение работает дальше
				sugar.Warnw("Диктовка остановлена", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := settings.Watch(gctx, cfg.SettingsPath, func(s settings.Settings) {
			if err := o.ApplySettings(s); err != nil {
				sugar.Warnw("Новые настройки отклонены", "error", err)
			}
		}, sugar.Named("settings"))
		if err != nil && !errors.Is(err, context.Canceled) {
			sugar.Warnw("Слежение за настройками остановлено", "error", err)
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr)
		g.Go(func() error {
			sugar.Infow("Metrics listening", "addr", "http://"+cfg.MetricsAddr+"/metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeoutCause(context.Background(), 5*time.Second, errors.New("shutdown timeout"))
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				_ = srv.Close()
			}
			return nil
		})
	}

	if err := o.Start(); err != nil {
		cancel(err)
		_ = g.Wait()
		return err
	}
	sugar.Infow("Ожидаем триггер", "trigger", st.TriggerKey, "clear", st.ClearBufferTriggerKey)

	<-gctx.Done()
	o.Stop()
	if cause := context.Cause(gctx); cause != nil && !errors.Is(cause, context.Canceled) {
		sugar.Warnw("Остановка", "cause", cause)
	}
	return g.Wait()
}

func newClient(cfg *config.Config, sugar *zap.SugaredLogger) ai.Client {
	if cfg.Provider == config.ProviderStub {
		sugar.Infow("Используется офлайн-провайдер, текст не меняется")
		return ai.NewStubClient()
	}
	var opts []option.RequestOption
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	// ключ берётся из OPENAI_API_KEY
	oClient := openai.NewClient(opts...)
	return ai.NewOpenAIClient(&oClient, cfg.OpenAIModel, sugar.Named("openai"))
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
