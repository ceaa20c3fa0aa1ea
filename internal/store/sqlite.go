package store

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/apitestgen/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			title TEXT NOT NULL,
			title_key TEXT NOT NULL,
			format TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_title_key ON uploads(title_key);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			filename TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			upload_id TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL,
			content TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS refinements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			feedback TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refinements_filename ON refinements(filename);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveUpload(u *types.Upload) error {
	if u == nil {
		return errors.New("upload is nil")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO uploads(id,filename,title,title_key,format,content,created_at) VALUES(?,?,?,?,?,?,?)`,
		u.ID, u.Filename, u.Title, u.TitleKey, u.Format, u.Content, u.CreatedAt)
	return err
}

const uploadColumns = `id,filename,title,title_key,format,content,created_at`

func scanUpload(row interface{ Scan(...any) error }) (*types.Upload, error) {
	var u types.Upload
	if err := row.Scan(&u.ID, &u.Filename, &u.Title, &u.TitleKey, &u.Format, &u.Content, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUpload(id string) (*types.Upload, error) {
	return scanUpload(s.db.QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id=?`, id))
}

func (s *SQLiteStore) FindUploadByTitleKey(key string) (*types.Upload, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	// Exact title matches win over filename matches; newest first within each.
	row := s.db.QueryRow(`SELECT `+uploadColumns+` FROM uploads
		WHERE title_key=? OR instr(replace(replace(lower(filename),' ',''),'_',''), ?) > 0
		ORDER BY (title_key=?) DESC, created_at DESC, rowid DESC LIMIT 1`, key, key, key)
	return scanUpload(row)
}

func (s *SQLiteStore) SaveArtifact(a *types.Artifact) error {
	if a == nil {
		return errors.New("artifact is nil")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	_, err := s.db.Exec(`INSERT INTO artifacts(filename,title,upload_id,prompt,content,revision,created_at,updated_at)
	VALUES(?,?,?,?,?,1,?,?)
	ON CONFLICT(filename) DO UPDATE SET title=excluded.title,upload_id=excluded.upload_id,prompt=excluded.prompt,content=excluded.content,revision=artifacts.revision+1,updated_at=excluded.updated_at`,
		a.Filename, a.Title, a.UploadID, a.Prompt, a.Content, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	saved, err := s.GetArtifact(a.Filename)
	if err != nil {
		return err
	}
	a.Revision = saved.Revision
	a.CreatedAt = saved.CreatedAt
	return nil
}

const artifactColumns = `filename,title,upload_id,prompt,content,revision,created_at,updated_at`

func scanArtifact(row interface{ Scan(...any) error }) (*types.Artifact, error) {
	var a types.Artifact
	if err := row.Scan(&a.Filename, &a.Title, &a.UploadID, &a.Prompt, &a.Content, &a.Revision, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) GetArtifact(filename string) (*types.Artifact, error) {
	return scanArtifact(s.db.QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE filename=?`, filename))
}

func (s *SQLiteStore) UpdateArtifactContent(filename, content string) (*types.Artifact, error) {
	res, err := s.db.Exec(`UPDATE artifacts SET content=?, revision=revision+1, updated_at=? WHERE filename=?`, content, time.Now().UTC(), filename)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetArtifact(filename)
}

func (s *SQLiteStore) ListArtifacts() ([]types.Artifact, error) {
	rows, err := s.db.Query(`SELECT ` + artifactColumns + ` FROM artifacts ORDER BY updated_at DESC, filename ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Artifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteArtifact(filename string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.Exec(`DELETE FROM artifacts WHERE filename=?`, filename)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM refinements WHERE filename=?`, filename); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveRefinement(r *types.Refinement) error {
	if r == nil {
		return errors.New("refinement is nil")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`INSERT INTO refinements(filename,feedback,created_at) VALUES(?,?,?)`, r.Filename, r.Feedback, r.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *SQLiteStore) ListRefinements(filename string) ([]types.Refinement, error) {
	rows, err := s.db.Query(`SELECT id,filename,feedback,created_at FROM refinements WHERE filename=? ORDER BY id ASC`, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Refinement, 0)
	for rows.Next() {
		var r types.Refinement
		if err := rows.Scan(&r.ID, &r.Filename, &r.Feedback, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
