package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"TextCorrector/internal/adapter/history"
	"TextCorrector/internal/config"
)

// Просмотр и обслуживание журнала коррекций без запуска основного приложения.
func main() {
	dbPath := flag.String("db", config.Defaults().HistoryPath, "путь к базе истории (SQLite)")
	recent := flag.Int("recent", 0, "показать N последних коррекций")
	search := flag.String("search", "", "искать подстроку в исходном и исправленном тексте")
	limit := flag.Int("limit", 20, "максимум строк для -search")
	stats := flag.Int("stats", 0, "статистика по дням за последние N дней")
	export := flag.String("export", "", "выгрузить историю в CSV, '-' = stdout")
	wipe := flag.Bool("clear", false, "удалить всю историю")
	olderThan := flag.Duration("older-than", 0, "удалить записи старше, напр. 24h")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(*dbPath, sugar)
	if err != nil {
		sugar.Errorw("Не удалось открыть историю", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(ctx, store, *recent, *search, *limit, *stats, *export, *wipe, *olderThan); err != nil {
		sugar.Errorw("Команда не выполнена", "error", err)
		store.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, store *history.Store, recent int, search string, limit, days int,
	export string, wipe bool, olderThan time.Duration) error {
	did := false

	if recent > 0 {
		did = true
		items, err := store.Recent(ctx, recent)
		if err != nil {
			return err
		}
		printCorrections(items)
	}
	if search != "" {
		did = true
		items, err := store.Search(ctx, search, limit)
		if err != nil {
			return err
		}
		fmt.Printf("Найдено: %d\n", len(items))
		printCorrections(items)
	}
	if days > 0 {
		did = true
		rows, err := store.Stats(ctx, days)
		if err != nil {
			return err
		}
		for _, d := range rows {
			fmt.Printf("%s  коррекций: %d  символов: %d  слов: %d\n", d.Day, d.Corrections, d.Characters, d.Words)
		}
	}
	if export != "" {
		did = true
		var w io.Writer = os.Stdout
		if export != "-" {
			f, err := os.Create(export)
			if err != nil {
				return fmt.Errorf("create %s: %w", export, err)
			}
			defer f.Close()
			w = f
		}
		n, err := store.Export(ctx, w)
		if err != nil {
			return err
		}
		if export != "-" {
			fmt.Printf("Выгружено %d записей в %s\n", n, export)
		}
	}
	if olderThan > 0 {
		did = true
		n, err := store.Cleanup(ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Удалено записей: %d\n", n)
	}
	if wipe {
		did = true
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("История очищена")
	}

	if !did {
		flag.Usage()
	}
	return nil
}

func printCorrections(items []history.Correction) {
	for _, c := range items {
		fmt.Printf("[%s] %d/%d\n  было:  %s\n  стало: %s\n",
			c.Time.Format("2006-01-02 15:04:05"), c.SelectedVersion, c.TotalVersions,
			preview(c.Original, 200), preview(c.Corrected, 200))
	}
}

func preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
