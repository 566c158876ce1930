package econlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sample é uma linha salva da economia.
type Sample struct {
	Game   string
	Nation string
	Date   time.Time
	Seq    uint64
	Values map[string]float64
}

// Point é um valor da série.
type Point struct {
	Date  time.Time
	Value float64
}

// Store guarda as amostras no SQLite.
type Store struct {
	db *sql.DB
}

// parseDSN accepts a bare path, ":memory:" or a sqlite:// URL.
func parseDSN(dsn string) (string, error) {
	rest := strings.TrimPrefix(dsn, "sqlite://")
	if strings.TrimSpace(rest) == "" {
		return "", errors.New("empty sqlite path")
	}
	return rest, nil
}

// OpenStore abre (ou cria) o banco e o schema.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	driverDSN, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}
	db, err := sql.Open("sqlite", driverDSN)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS samples (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		game_name   TEXT NOT NULL,
		nation      TEXT NOT NULL,
		game_date   TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		recorded_at TEXT DEFAULT (datetime('now')),
		CONSTRAINT uq_sample_day UNIQUE (game_name, nation, game_date)
	);

	CREATE TABLE IF NOT EXISTS sample_values (
		sample_id INTEGER NOT NULL REFERENCES samples(id) ON DELETE CASCADE,
		name      TEXT NOT NULL,
		value     REAL NOT NULL,
		PRIMARY KEY (sample_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_samples_game ON samples (game_name, nation, game_date);
	CREATE INDEX IF NOT EXISTS idx_values_name ON sample_values (name);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating econlog schema: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// Save grava uma amostra. O mesmo dia salvo de novo substitui os valores.
func (s *Store) Save(ctx context.Context, sm Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	date := sm.Date.Format(dateLayout)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO samples (game_name, nation, game_date, seq) VALUES (?, ?, ?, ?)
		ON CONFLICT (game_name, nation, game_date) DO UPDATE SET seq = excluded.seq, recorded_at = datetime('now')`,
		sm.Game, sm.Nation, date, int64(sm.Seq)); err != nil {
		return fmt.Errorf("saving sample %s: %w", date, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM samples WHERE game_name = ? AND nation = ? AND game_date = ?`,
		sm.Game, sm.Nation, date).Scan(&id); err != nil {
		return fmt.Errorf("reading sample id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sample_values WHERE sample_id = ?`, id); err != nil {
		return fmt.Errorf("clearing sample values: %w", err)
	}

	names := make([]string, 0, len(sm.Values))
	for name := range sm.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sample_values (sample_id, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing values: %w", err)
	}
	defer stmt.Close()
	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, id, name, sm.Values[name]); err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// LastDate devolve o último dia salvo, ou tempo zero se o jogo não tem
// linhas.
func (s *Store) LastDate(ctx context.Context, game, nation string) (time.Time, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(game_date) FROM samples WHERE game_name = ? AND nation = ?`,
		game, nation).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, date.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", date.String, err)
	}
	return t, nil
}

// Series devolve um indicador no tempo, do mais antigo ao mais novo.
func (s *Store) Series(ctx context.Context, game, nation, name string) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.game_date, v.value
		FROM samples s JOIN sample_values v ON v.sample_id = s.id
		WHERE s.game_name = ? AND s.nation = ? AND v.name = ?
		ORDER BY s.game_date`, game, nation, name)
	if err != nil {
		return nil, fmt.Errorf("querying series %s: %w", name, err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var date string
		var p Point
		if err := rows.Scan(&date, &p.Value); err != nil {
			return nil, err
		}
		if p.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("bad stored date %q: %w", date, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count diz quantos dias estão salvos para o jogo.
func (s *Store) Count(ctx context.Context, game, nation string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE game_name = ? AND nation = ?`, game, nation).Scan(&n)
	return n, err
}
