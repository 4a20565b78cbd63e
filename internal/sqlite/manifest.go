// Package sqlite writes the optional run manifest: a SQLite database that
// records every image a partition run copied, keyed by split and index.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

// Run describes the partition run a manifest belongs to.
type Run struct {
	RunID       string
	Seed        int64
	ValFraction float64
	DataDir     string
	CreatedAt   time.Time
}

// Entry is one copied image. Index is the image's position in its split's
// index; unlabeled images share the train sequence.
type Entry struct {
	Split     string
	Index     int
	ClassID   string
	ImageName string
	ImageID   string
	Source    string
	Bytes     int64
}

// WriteManifest builds the manifest in a scratch file on the host
// filesystem, where SQLite can open it, then copies it to path on fs.
func WriteManifest(fs afero.Fs, path string, run Run, entries []Entry) error {
	tmp, err := os.CreateTemp("", "dataprep-manifest-*.db")
	if err != nil {
		return fmt.Errorf("creating scratch manifest: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := buildManifest(tmpName, run, entries); err != nil {
		return err
	}

	data, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("reading scratch manifest: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

func buildManifest(dbPath string, run Run, entries []Entry) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer db.Close()

	for _, ddl := range manifestDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create manifest schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, seed, val_fraction, data_dir, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Seed, run.ValFraction, run.DataDir, run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO images (split, idx, class_id, image_name, image_id, source, bytes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Split, e.Index, e.ClassID, e.ImageName, e.ImageID, e.Source, e.Bytes); err != nil {
			return fmt.Errorf("insert image %s: %w", e.ImageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest. Entries are
// ordered by split then index.
func ReadManifest(fs afero.Fs, path string) (Run, []Entry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Run{}, nil, fmt.Errorf("reading manifest: %w", err)
	}

	tmp, err := os.CreateTemp("", "dataprep-manifest-*.db")
	if err != nil {
		return Run{}, nil, fmt.Errorf("creating scratch manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Run{}, nil, fmt.Errorf("writing scratch manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Run{}, nil, fmt.Errorf("closing scratch manifest: %w", err)
	}

	db, err := sql.Open("sqlite", tmpName)
	if err != nil {
		return Run{}, nil, fmt.Errorf("open manifest: %w", err)
	}
	defer db.Close()

	var (
		run       Run
		createdAt string
	)
	err = db.QueryRow(`SELECT run_id, seed, val_fraction, data_dir, created_at FROM runs`).
		Scan(&run.RunID, &run.Seed, &run.ValFraction, &run.DataDir, &createdAt)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query run: %w", err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Run{}, nil, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := db.Query(`SELECT split, idx, class_id, image_name, image_id, source, bytes FROM images ORDER BY split, idx`)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Split, &e.Index, &e.ClassID, &e.ImageName, &e.ImageID, &e.Source, &e.Bytes); err != nil {
			return Run{}, nil, fmt.Errorf("scan image: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("iterate images: %w", err)
	}
	return run, entries, nil
}
