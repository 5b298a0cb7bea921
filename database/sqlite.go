package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}

	return &SQLiteDB{db: db}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			cameras TEXT,
			status TEXT NOT NULL,
			attempts INTEGER DEFAULT 0,
			output_path TEXT,
			merged_files TEXT,
			uploaded_urls TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_exports_identifier ON exports(identifier)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at)`)
	return err
}

// CreateExport inserts a new export history row
func (s *SQLiteDB) CreateExport(rec ExportRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO exports (
			id, identifier, start_time, end_time, cameras, status, attempts,
			output_path, merged_files, uploaded_urls, error_message, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Identifier, rec.StartTime, rec.EndTime, rec.Cameras,
		string(rec.Status), rec.Attempts, rec.OutputPath, rec.MergedFiles,
		rec.UploadedURLs, rec.ErrorMessage, rec.CreatedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create export record: %v", err)
	}
	return nil
}

// UpdateExport updates an existing export history row by ID
func (s *SQLiteDB) UpdateExport(rec ExportRecord) error {
	result, err := s.db.Exec(`
		UPDATE exports SET
			identifier = ?, start_time = ?, end_time = ?, cameras = ?,
			status = ?, attempts = ?, output_path = ?, merged_files = ?,
			uploaded_urls = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`,
		rec.Identifier, rec.StartTime, rec.EndTime, rec.Cameras,
		string(rec.Status), rec.Attempts, rec.OutputPath, rec.MergedFiles,
		rec.UploadedURLs, rec.ErrorMessage, rec.FinishedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update export record: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("export record not found: %s", rec.ID)
	}
	return nil
}

// GetExport retrieves one export history row, nil if absent
func (s *SQLiteDB) GetExport(id string) (*ExportRecord, error) {
	row := s.db.QueryRow(selectColumns+` WHERE id = ?`, id)
	rec, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export record: %v", err)
	}
	return rec, nil
}

// ListExports returns export history rows, newest first
func (s *SQLiteDB) ListExports(limit, offset int) ([]ExportRecord, error) {
	rows, err := s.db.Query(selectColumns+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list export records: %v", err)
	}
	defer rows.Close()
	return scanExports(rows)
}

// GetExportsByIdentifier returns the history for one event identifier,
// newest first
func (s *SQLiteDB) GetExportsByIdentifier(identifier string) ([]ExportRecord, error) {
	rows, err := s.db.Query(selectColumns+` WHERE identifier = ? ORDER BY created_at DESC`, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get export records by identifier: %v", err)
	}
	defer rows.Close()
	return scanExports(rows)
}

// GetExportsByStatus returns rows with the given status, newest first
func (s *SQLiteDB) GetExportsByStatus(status ExportStatus, limit, offset int) ([]ExportRecord, error) {
	rows, err := s.db.Query(selectColumns+` WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get export records by status: %v", err)
	}
	defer rows.Close()
	return scanExports(rows)
}

// DeleteExportsBefore removes rows created before cutoff and reports how
// many were deleted
func (s *SQLiteDB) DeleteExportsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM exports WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old export records: %v", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, identifier, start_time, end_time, cameras, status, attempts,
	       output_path, merged_files, uploaded_urls, error_message, created_at, finished_at
	FROM exports`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExport(row rowScanner) (*ExportRecord, error) {
	var rec ExportRecord
	var status string
	var finishedAt sql.NullTime
	err := row.Scan(
		&rec.ID, &rec.Identifier, &rec.StartTime, &rec.EndTime, &rec.Cameras,
		&status, &rec.Attempts, &rec.OutputPath, &rec.MergedFiles,
		&rec.UploadedURLs, &rec.ErrorMessage, &rec.CreatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = ExportStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return &rec, nil
}

func scanExports(rows *sql.Rows) ([]ExportRecord, error) {
	var records []ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export record: %v", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
