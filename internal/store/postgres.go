package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/typeid"
)

// schema creates the scene and snapshot tables. Every save adds a snapshot
// row; the scene row carries the latest version number.
const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS scene_snapshots (
	id         TEXT PRIMARY KEY,
	scene_id   TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (scene_id, version)
);
CREATE INDEX IF NOT EXISTS scenes_owner_idx ON scenes (owner_id);
`

// Postgres stores versioned scene snapshots.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPool connects to databaseURL and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, s *Scene) (*Scene, error) {
	docJSON, err := json.Marshal(s.Document)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	out := *s
	err = tx.QueryRow(ctx,
		`INSERT INTO scenes (id, name, owner_id) VALUES ($1, $2, $3)
		 RETURNING version, created_at, updated_at`,
		s.ID, s.Name, s.OwnerID,
	).Scan(&out.Version, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("create scene %s: %w", s.ID, ErrConflict)
		}
		return nil, fmt.Errorf("create scene: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO scene_snapshots (id, scene_id, version, document) VALUES ($1, $2, $3, $4)`,
		typeid.NewSnapshotID(), s.ID, out.Version, docJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &out, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Scene, error) {
	var s Scene
	var docJSON []byte
	err := p.pool.QueryRow(ctx,
		`SELECT s.id, s.name, s.owner_id, s.version, s.created_at, s.updated_at, snap.document
		 FROM scenes s
		 JOIN scene_snapshots snap ON snap.scene_id = s.id AND snap.version = s.version
		 WHERE s.id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.OwnerID, &s.Version, &s.CreatedAt, &s.UpdatedAt, &docJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}

	var doc document.SceneDocument
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s.Document = &doc
	return &s, nil
}

func (p *Postgres) List(ctx context.Context, ownerID string) ([]Scene, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, owner_id, version, created_at, updated_at
		 FROM scenes
		 WHERE $1 = '' OR owner_id = $1
		 ORDER BY updated_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	out := []Scene{}
	for rows.Next() {
		var s Scene
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	return out, nil
}

func (p *Postgres) Save(ctx context.Context, id string, doc *document.SceneDocument) (int, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int
	err = tx.QueryRow(ctx,
		`UPDATE scenes SET version = version + 1, updated_at = now()
		 WHERE id = $1 RETURNING version`,
		id,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("bump version: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO scene_snapshots (id, scene_id, version, document) VALUES ($1, $2, $3, $4)`,
		typeid.NewSnapshotID(), id, version, docJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return version, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
