package IO

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// EpochRecord is one row of training history.
type EpochRecord struct {
	RunID     string
	Epoch     int
	Rate      float64
	TrainLoss float64
	// ValidLoss is NaN when no validation file is configured.
	ValidLoss float64
	Elapsed   time.Duration
}

type History interface {
	Record(rec EpochRecord) error
	Close() error
}

// OpenHistory picks a sink by extension: .db/.sqlite/.sqlite3 go to SQLite,
// anything else is written as CSV.
func OpenHistory(path string) (History, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteHistory(path)
	default:
		return OpenCSVHistory(path)
	}
}

type CSVHistory struct {
	f *os.File
	w *csv.Writer
}

func OpenCSVHistory(path string) (*CSVHistory, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating training log")
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"run", "epoch", "lr", "train_loss", "valid_loss", "elapsed_sec"}); err != nil {
		f.Close()
		return nil, err
	}
	return &CSVHistory{f: f, w: w}, nil
}

func (h *CSVHistory) Record(rec EpochRecord) error {
	err := h.w.Write([]string{
		rec.RunID,
		strconv.Itoa(rec.Epoch),
		strconv.FormatFloat(rec.Rate, 'g', -1, 64),
		strconv.FormatFloat(rec.TrainLoss, 'g', -1, 64),
		strconv.FormatFloat(rec.ValidLoss, 'g', -1, 64),
		strconv.FormatFloat(rec.Elapsed.Seconds(), 'f', 3, 64),
	})
	if err != nil {
		return err
	}
	h.w.Flush()
	return h.w.Error()
}

func (h *CSVHistory) Close() error {
	h.w.Flush()
	if err := h.w.Error(); err != nil {
		h.f.Close()
		return err
	}
	return h.f.Close()
}

type SQLiteHistory struct {
	db *sql.DB
}

const historySchema = `CREATE TABLE IF NOT EXISTS epochs (
	run TEXT NOT NULL,
	epoch INTEGER NOT NULL,
	lr REAL,
	train_loss REAL,
	valid_loss REAL,
	elapsed_sec REAL,
	PRIMARY KEY (run, epoch)
)`

func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening history db")
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history schema")
	}
	return &SQLiteHistory{db: db}, nil
}

func (h *SQLiteHistory) Record(rec EpochRecord) error {
	var valid any
	if rec.ValidLoss == rec.ValidLoss { // NaN is stored as NULL
		valid = rec.ValidLoss
	}
	_, err := h.db.Exec(
		`INSERT OR REPLACE INTO epochs (run, epoch, lr, train_loss, valid_loss, elapsed_sec) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Epoch, rec.Rate, rec.TrainLoss, valid, rec.Elapsed.Seconds(),
	)
	return errors.Wrap(err, "recording epoch")
}

// Epochs returns the recorded train losses of a run in epoch order.
func (h *SQLiteHistory) Epochs(runID string) ([]float64, error) {
	rows, err := h.db.Query(`SELECT train_loss FROM epochs WHERE run = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (h *SQLiteHistory) Close() error { return h.db.Close() }
