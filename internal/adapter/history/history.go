// Package history журнал принятых исправлений в SQLite с автоочисткой.
package history

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns     INTEGER NOT NULL,
    original_text    TEXT NOT NULL,
    corrected_text   TEXT NOT NULL,
    selected_version INTEGER NOT NULL DEFAULT 1,
    total_versions   INTEGER NOT NULL DEFAULT 1,
    char_count       INTEGER NOT NULL,
    word_count       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_timestamp ON corrections(timestamp_ns DESC);

CREATE TABLE IF NOT EXISTS statistics (
    day               TEXT PRIMARY KEY,
    total_corrections INTEGER NOT NULL DEFAULT 0,
    total_characters  INTEGER NOT NULL DEFAULT 0,
    total_words       INTEGER NOT NULL DEFAULT 0
);
`

// Статистика по дням хранится дольше самих текстов.
const statsRetentionDays = 7

// Correction одна запись журнала. SelectedVersion с единицы.
type Correction struct {
	ID              int64
	Time            time.Time
	Original        string
	Corrected       string
	SelectedVersion int
	TotalVersions   int
	CharCount       int
	WordCount       int
}

// DayStats агрегаты за один день.
type DayStats struct {
	Day         string
	Corrections int
	Characters  int
	Words       int
}

type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Open открывает или создаёт базу и применяет схему.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddCorrection selectedIndex с нуля, как в оркестраторе; в базе хранится с единицы.
func (s *Store) AddCorrection(ctx context.Context, original, corrected string, selectedIndex, total int) error {
	now := s.now()
	chars := utf8.RuneCountInString(corrected)
	words := len(strings.Fields(corrected))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO corrections (timestamp_ns, original_text, corrected_text, selected_version, total_versions, char_count, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		now.UnixNano(), original, corrected, selectedIndex+1, total, chars, words,
	); err != nil {
		return fmt.Errorf("insert correction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO statistics (day, total_corrections, total_characters, total_words)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			total_corrections = total_corrections + 1,
			total_characters = total_characters + excluded.total_characters,
			total_words = total_words + excluded.total_words`,
		dayKey(now), chars, words,
	); err != nil {
		return fmt.Errorf("update statistics: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent последние записи, новые первыми.
func (s *Store) Recent(ctx context.Context, limit int) ([]Correction, error) {
	return s.query(ctx, `
		SELECT id, timestamp_ns, original_text, corrected_text, selected_version, total_versions, char_count, word_count
		FROM corrections ORDER BY timestamp_ns DESC, id DESC LIMIT ?`, limit)
}

// Search подстрока в исходном или исправленном тексте.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Correction, error) {
	pattern := "%" + query + "%"
	return s.query(ctx, `
		SELECT id, timestamp_ns, original_text, corrected_text, selected_version, total_versions, char_count, word_count
		FROM corrections WHERE original_text LIKE ? OR corrected_text LIKE ?
		ORDER BY timestamp_ns DESC, id DESC LIMIT ?`, pattern, pattern, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Correction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var (
			c  Correction
			ns int64
		)
		if err := rows.Scan(&c.ID, &ns, &c.Original, &c.Corrected, &c.SelectedVersion, &c.TotalVersions, &c.CharCount, &c.WordCount); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		c.Time = time.Unix(0, ns)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats дневные агрегаты за последние days дней, свежие первыми.
func (s *Store) Stats(ctx context.Context, days int) ([]DayStats, error) {
	from := dayKey(s.now().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, total_corrections, total_characters, total_words
		FROM statistics WHERE day >= ? ORDER BY day DESC`, from)
	if err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	var out []DayStats
	for rows.Next() {
		var d DayStats
		if err := rows.Scan(&d.Day, &d.Corrections, &d.Characters, &d.Words); err != nil {
			return nil, fmt.Errorf("scan statistics: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Cleanup удаляет записи старше olderThan и статистику старше недели.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM corrections WHERE timestamp_ns < ?`, now.Add(-olderThan).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete corrections: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM statistics WHERE day < ?`, dayKey(now.AddDate(0, 0, -statsRetentionDays))); err != nil {
		return deleted, fmt.Errorf("delete statistics: %w", err)
	}
	return deleted, nil
}

// Clear удаляет всю историю вместе со статистикой.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM corrections`); err != nil {
		return fmt.Errorf("delete corrections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM statistics`); err != nil {
		return fmt.Errorf("delete statistics: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Infow("История очищена")
	return nil
}

var exportHeader = []string{"Timestamp", "Original Text", "Corrected Text", "Selected Version", "Total Versions"}

// Export пишет всю историю в CSV, новые записи первыми. Возвращает число строк без заголовка.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ns, original_text, corrected_text, selected_version, total_versions
		FROM corrections ORDER BY timestamp_ns DESC, id DESC`)
	if err != nil {
		return 0, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n := 0
	for rows.Next() {
		var (
			ns              int64
			orig, corr      string
			selected, total int
		)
		if err := rows.Scan(&ns, &orig, &corr, &selected, &total); err != nil {
			return n, fmt.Errorf("scan correction: %w", err)
		}
		rec := []string{
			time.Unix(0, ns).Format(time.RFC3339),
			orig, corr,
			strconv.Itoa(selected), strconv.Itoa(total),
		}
		if err := cw.Write(rec); err != nil {
			return n, fmt.Errorf("write row: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("read corrections: %w", err)
	}
	cw.Flush()
	return n, cw.Error()
}

// RunCleanup периодическая очистка до отмены ctx.
func (s *Store) RunCleanup(ctx context.Context, every, retention time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Cleanup(ctx, retention)
			if err != nil {
				s.logger.Errorw("Автоочистка истории не удалась", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Infow("Автоочистка истории", "removed", n, "retention", retention.String())
			}
		}
	}
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }
