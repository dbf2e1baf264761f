package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sketch-engine/internal/sketch/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init запускает миграции.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// Ping проверяет соединение с базой.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create сохраняет новый эскиз и выдает ему id.
func (r *Repository) Create(ctx context.Context, name string, doc *models.Document) (*models.Sketch, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode sketch: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO sketches (id, name, body)
        VALUES (?, ?, ?)
    `, id, name, string(body))
	if err != nil {
		return nil, fmt.Errorf("insert sketch: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Sketch, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, body, created_at, updated_at
        FROM sketches
        WHERE id = ?
    `, id)

	var (
		s    models.Sketch
		body string
	)
	if err := row.Scan(&s.ID, &s.Name, &body, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	doc, err := models.ParseDocument([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("sketch %s: %w", id, err)
	}
	s.Document = doc
	return &s, nil
}

// Update переписывает документ эскиза. Пустое имя оставляет прежнее.
func (r *Repository) Update(ctx context.Context, id, name string, doc *models.Document) (*models.Sketch, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode sketch: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
        UPDATE sketches
        SET name = COALESCE(NULLIF(?, ''), name),
            body = ?,
            updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
        WHERE id = ?
    `, name, string(body), id)
	if err != nil {
		return nil, fmt.Errorf("update sketch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sketches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sketch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает эскизы без тел документов, новые первыми.
func (r *Repository) List(ctx context.Context) ([]models.Sketch, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, created_at, updated_at
        FROM sketches
        ORDER BY updated_at DESC, id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Sketch
	for rows.Next() {
		var s models.Sketch
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = r.db.ExecContext(ctx, string(data))
	if err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
