package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub" // офлайн: возвращает текст без изменений
)

type Config struct {
	DebugMode bool   `env:"DEBUG_MODE"` //Режим дебага
	LogFile   string `env:"LOG_FILE"`   // Дополнительный файл для логов, по умолчанию только stderr

	// Провайдер. Ключ OPENAI_API_KEY читает сам SDK
	Provider       string        `env:"PROVIDER"`        // openai|stub
	OpenAIModel    string        `env:"OPENAI_MODEL"`    // Модель для коррекции
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"` // Совместимый с OpenAI endpoint, пусто — официальный
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"` // Таймаут одного запроса к провайдеру

	// Файл пользовательских настроек (триггеры, число вариантов, стили)
	SettingsPath string `env:"SETTINGS_PATH"`

	// История коррекций в SQLite
	HistoryPath            string        `env:"HISTORY_PATH"`
	HistoryEnabled         bool          `env:"HISTORY_ENABLED"`
	HistoryRetention       time.Duration `env:"HISTORY_RETENTION"`        // Сколько хранить записи
	HistoryCleanupInterval time.Duration `env:"HISTORY_CLEANUP_INTERVAL"` // Как часто чистить

	// Теневой буфер набранного текста
	BufferMaxChars        int           `env:"BUFFER_MAX_CHARS"`
	BufferMaxWindows      int           `env:"BUFFER_MAX_WINDOWS"`
	BufferCleanupInterval time.Duration `env:"BUFFER_CLEANUP_INTERVAL"`
	MaxTextLength         int           `env:"MAX_TEXT_LENGTH"` // Длиннее в провайдер не отправляем

	// Звук ожидания ответа
	LoadingSoundEnabled  bool    `env:"LOADING_SOUND_ENABLED"`
	LoadingSoundPath     string  `env:"LOADING_SOUND_PATH"`      // Начало запроса, mp3|wav
	LoadingDoneSoundPath string  `env:"LOADING_DONE_SOUND_PATH"` // Ответ получен
	LoadingSoundVolumeDB float64 `env:"LOADING_SOUND_VOLUME_DB"` // 0 — без изменений, отрицательное — тише

	// Диктовка: внешнее STT-приложение вставляет текст через буфер обмена
	DictationEnabled bool          `env:"DICTATION_ENABLED"`
	DictationWindow  time.Duration `env:"DICTATION_WINDOW"` // Сколько ждать текст после выключения

	MetricsAddr string        `env:"METRICS_ADDR"` // Адрес /metrics, пусто — не поднимать
	SettleDelay time.Duration `env:"SETTLE_DELAY"` // Пауза после синтетических нажатий
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	dir := dataDir()
	return &Config{
		DebugMode:              false,
		Provider:               ProviderOpenAI,
		OpenAIModel:            "gpt-4o-mini",
		RequestTimeout:         30 * time.Second,
		SettingsPath:           filepath.Join(dir, "settings.yaml"),
		HistoryPath:            filepath.Join(dir, "history.db"),
		HistoryEnabled:         true,
		HistoryRetention:       time.Hour,
		HistoryCleanupInterval: time.Hour,
		BufferMaxChars:         10000,
		BufferMaxWindows:       10,
		BufferCleanupInterval:  time.Minute,
		MaxTextLength:          10000,
		LoadingSoundEnabled:    true,
		DictationEnabled:       true,
		DictationWindow:        time.Second,
		SettleDelay:            50 * time.Millisecond,
	}
}

// dataDir %USERPROFILE%/.textcorrector, если домашняя папка неизвестна — рабочая.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".textcorrector"
	}
	return filepath.Join(home, ".textcorrector")
}

// NewConfig загружает конфигурацию приложения. Ошибка конфигурации фатальна.
func NewConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load .env → окружение → флаги из args → проверка.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	// Стартуем с дефолтов, затем перекрываем .env/окружением и флагами
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("textcorrector", flag.ContinueOnError)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага для отображения доп. инфы")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "дополнительно писать логи в файл")
	// Провайдер
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "провайдер коррекции: openai|stub")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "модель OpenAI")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", cfg.OpenAIBaseURL, "адрес OpenAI-совместимого API")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "таймаут одного запроса к провайдеру, напр. 30s")
	// Файлы
	fs.StringVar(&cfg.SettingsPath, "settings-path", cfg.SettingsPath, "путь к YAML с пользовательскими настройками")
	fs.StringVar(&cfg.HistoryPath, "history-path", cfg.HistoryPath, "путь к базе истории (SQLite)")
	fs.BoolVar(&cfg.HistoryEnabled, "history-enabled", cfg.HistoryEnabled, "сохранять принятые коррекции в историю")
	fs.DurationVar(&cfg.HistoryRetention, "history-retention", cfg.HistoryRetention, "сколько хранить записи истории")
	fs.DurationVar(&cfg.HistoryCleanupInterval, "history-cleanup-interval", cfg.HistoryCleanupInterval, "периодичность очистки истории")
	// Буфер
	fs.IntVar(&cfg.BufferMaxChars, "buffer-max-chars", cfg.BufferMaxChars, "максимум символов теневого буфера на окно")
	fs.IntVar(&cfg.BufferMaxWindows, "buffer-max-windows", cfg.BufferMaxWindows, "сколько окон отслеживать одновременно")
	fs.DurationVar(&cfg.BufferCleanupInterval, "buffer-cleanup-interval", cfg.BufferCleanupInterval, "как часто вытеснять старые окна")
	fs.IntVar(&cfg.MaxTextLength, "max-text-length", cfg.MaxTextLength, "максимальная длина текста для коррекции")
	// Звук
	fs.BoolVar(&cfg.LoadingSoundEnabled, "loading-sound-enabled", cfg.LoadingSoundEnabled, "звук во время ожидания ответа")
	fs.StringVar(&cfg.LoadingSoundPath, "loading-sound-path", cfg.LoadingSoundPath, "звук начала запроса (mp3 или wav)")
	fs.StringVar(&cfg.LoadingDoneSoundPath, "loading-done-sound-path", cfg.LoadingDoneSoundPath, "звук получения ответа (mp3 или wav)")
	fs.Float64Var(&cfg.LoadingSoundVolumeDB, "loading-sound-volume-db", cfg.LoadingSoundVolumeDB, "громкость звуков в дБ относительно файла")
	// Диктовка
	fs.BoolVar(&cfg.DictationEnabled, "dictation-enabled", cfg.DictationEnabled, "учитывать текст внешнего STT-приложения")
	fs.DurationVar(&cfg.DictationWindow, "dictation-window", cfg.DictationWindow, "окно приёма текста после выключения диктовки, напр. 1s")
	// Прочее
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "адрес HTTP для /metrics, напр. 127.0.0.1:9464")
	fs.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "пауза после синтетических нажатий, напр. 50ms")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("config: unknown provider %q (openai|stub)", c.Provider)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("config: max text length must be positive, got %d", c.MaxTextLength)
	}
	if c.BufferMaxChars <= 0 || c.BufferMaxWindows <= 0 {
		return fmt.Errorf("config: buffer limits must be positive")
	}
	if strings.TrimSpace(c.SettingsPath) == "" {
		return fmt.Errorf("config: settings path is required")
	}
	if c.HistoryEnabled && strings.TrimSpace(c.HistoryPath) == "" {
		return fmt.Errorf("config: history path is required when history is enabled")
	}
	return nil
}

// NewLogger в режиме дебага — консольный dev-логгер, иначе JSON уровня info.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.DebugMode {
		zc = zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, c.LogFile)
	}
	return zc.Build()
}
