// Package settings пользовательские настройки в YAML-файле с горячей перезагрузкой.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"TextCorrector/internal/service/corrector"
	"TextCorrector/internal/trigger"
)

// Settings то, что пользователь может поменять без перезапуска.
type Settings struct {
	TriggerKey            string                       `yaml:"trigger_key"`
	ClearBufferTriggerKey string                       `yaml:"clear_buffer_trigger_key"`
	DictationTriggerKey   string                       `yaml:"dictation_trigger_key"`
	VersionsPerCorrection int                          `yaml:"versions_per_correction"`
	CandidateSettings     []corrector.CandidateSetting `yaml:"candidate_settings"`
	ParagraphEnabled      bool                         `yaml:"paragraph_enabled"`
}

func Defaults() Settings {
	return Settings{
		TriggerKey:            trigger.DefaultCorrection,
		ClearBufferTriggerKey: trigger.DefaultClearBuffer,
		DictationTriggerKey:   trigger.DefaultDictation,
		VersionsPerCorrection: 1,
		CandidateSettings:     corrector.DefaultSettings(),
		ParagraphEnabled:      true,
	}
}

// Triggers собирает набор триггеров с проверкой на пересечения.
func (s Settings) Triggers() (trigger.Set, error) {
	return trigger.NewSet(s.TriggerKey, s.ClearBufferTriggerKey, s.DictationTriggerKey)
}

// Validate те же правила, что у сеттеров оркестратора.
func (s Settings) Validate() error {
	if _, err := s.Triggers(); err != nil {
		return err
	}
	if s.VersionsPerCorrection < 1 || s.VersionsPerCorrection > corrector.MaxCandidates {
		return fmt.Errorf("versions_per_correction must be in 1..%d, got %d", corrector.MaxCandidates, s.VersionsPerCorrection)
	}
	if len(s.CandidateSettings) > corrector.MaxCandidates {
		return fmt.Errorf("candidate_settings: at most %d entries, got %d", corrector.MaxCandidates, len(s.CandidateSettings))
	}
	for i, c := range s.CandidateSettings {
		if c.Temperature < 0 || c.Temperature > 1 {
			return fmt.Errorf("candidate_settings[%d]: temperature %.2f out of [0,1]", i, c.Temperature)
		}
	}
	return nil
}

// Load отсутствующий файл — не ошибка, возвращаются значения по умолчанию.
// Незаданные поля заполняются значениями по умолчанию.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	s.CandidateSettings = corrector.NormalizeSettings(s.CandidateSettings)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validate settings: %w", err)
	}
	return s, nil
}

// Save пишет во временный файл рядом и переименовывает: читатель не увидит половину файла.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// LoadOrCreate создаёт файл со значениями по умолчанию, если его ещё нет.
func LoadOrCreate(path string) (Settings, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s := Defaults()
		if err := Save(path, s); err != nil {
			return Settings{}, false, err
		}
		return s, true, nil
	}
	s, err := Load(path)
	return s, false, err
}

const debounceDelay = 150 * time.Millisecond

// Watch следит за файлом до отмены ctx и вызывает fn с каждой валидной версией.
// Невалидный файл логируется и игнорируется, действующие настройки не меняются.
func Watch(ctx context.Context, path string, fn func(Settings), logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// каталог, а не файл: Save заменяет файл переименованием
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}

	reload := reloader(ctx, path, fn, logger)

	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		name := filepath.Base(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnw("Ошибка наблюдения за настройками", "error", err)
			}
		}
	}()
	return nil
}

// reloader таймер debounce мог сработать уже после отмены ctx: такие перечитывания пропускаем.
func reloader(ctx context.Context, path string, fn func(Settings), logger *zap.SugaredLogger) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		s, err := Load(path)
		if err != nil {
			logger.Warnw("Настройки не применены", "path", path, "error", err)
			return
		}
		logger.Infow("Настройки перечитаны", "path", path)
		fn(s)
	}
}
