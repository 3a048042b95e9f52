package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS battery_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	level INTEGER NOT NULL,
	charging INTEGER NOT NULL,
	chatmix INTEGER
);
CREATE INDEX IF NOT EXISTS idx_history_ts ON battery_history(timestamp);

CREATE TABLE IF NOT EXISTS headset_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// HistorySample is one recorded battery reading. Level is -1 when the
// helper reported charging or unavailable without a usable percentage.
type HistorySample struct {
	Timestamp int64 `json:"timestamp"`
	Level     int   `json:"level"`
	Charging  bool  `json:"charging"`
	ChatMix   *int  `json:"chatmix,omitempty"`
}

// DB wraps a SQLite database holding battery history and the last-used
// headset settings.
type DB struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertSample records one battery reading.
func (d *DB) InsertSample(s HistorySample) error {
	var mix any
	if s.ChatMix != nil {
		mix = *s.ChatMix
	}
	_, err := d.db.Exec(
		"INSERT INTO battery_history (timestamp, level, charging, chatmix) VALUES (?, ?, ?, ?)",
		s.Timestamp, s.Level, s.Charging, mix,
	)
	return err
}

// LatestSample returns the most recent battery reading, or nil when the
// history is empty.
func (d *DB) LatestSample() (*HistorySample, error) {
	row := d.db.QueryRow("SELECT timestamp, level, charging, chatmix FROM battery_history ORDER BY timestamp DESC, id DESC LIMIT 1")
	s, err := scanSample(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SamplesInRange returns battery readings within the given time range.
func (d *DB) SamplesInRange(from, to int64) ([]HistorySample, error) {
	rows, err := d.db.Query(
		"SELECT timestamp, level, charging, chatmix FROM battery_history WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var samples []HistorySample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *s)
	}
	return samples, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*HistorySample, error) {
	var s HistorySample
	var mix sql.NullInt64
	if err := row.Scan(&s.Timestamp, &s.Level, &s.Charging, &mix); err != nil {
		return nil, err
	}
	if mix.Valid {
		v := int(mix.Int64)
		s.ChatMix = &v
	}
	return &s, nil
}

// SetSetting stores a key-value pair, replacing any previous value.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.db.Exec(
		"INSERT INTO headset_settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Setting returns the stored value for key; ok is false when unset.
func (d *DB) Setting(key string) (value string, ok bool, err error) {
	row := d.db.QueryRow("SELECT value FROM headset_settings WHERE key = ?", key)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
