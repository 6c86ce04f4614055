// Package repo contains the demo service's data access, written against the
// sqlgate dispatcher: queries are Expr values, and multi-statement operations
// run under the transaction scope so both statements share one transaction.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sqlgate/src/sqlgate"
)

// ErrNoteNotFound is returned when a note does not exist.
var ErrNoteNotFound = errors.New("note not found")

// Note is one stored note at its current revision.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Revision  int       `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is one historical body of a note.
type Revision struct {
	ID        int64     `json:"id"`
	NoteID    int64     `json:"note_id"`
	Revision  int       `json:"revision"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteRepository stores notes through the dispatcher.
type NoteRepository struct {
	db       *sqlgate.DB
	provider *sqlgate.Provider
}

// NewNoteRepository constructs a repository over the dispatcher and its
// provider (the provider is only used for health checks).
func NewNoteRepository(db *sqlgate.DB, provider *sqlgate.Provider) *NoteRepository {
	return &NoteRepository{db: db, provider: provider}
}

// Health pings the database through the pooled handle.
func (r *NoteRepository) Health(ctx context.Context) error {
	pool, err := r.provider.Pool(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Create inserts a note and its first revision in one transaction.
func (r *NoteRepository) Create(ctx context.Context, title, body string) (*Note, error) {
	create := sqlgate.Transactional(r.db, func(ctx context.Context) (*Note, error) {
		var n Note
		err := r.db.QueryRow(ctx, sqlgate.SQL(`
			INSERT INTO notes (title, body)
			VALUES (?, ?)
			RETURNING note_id, title, body, revision, created_at, updated_at`,
			title, body,
		)).Scan(&n.ID, &n.Title, &n.Body, &n.Revision, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return nil, err
		}
		_, err = r.db.Exec(ctx, sqlgate.SQL(`
			INSERT INTO note_revisions (note_id, revision, body)
			VALUES (?, ?, ?)`,
			n.ID, n.Revision, n.Body,
		))
		if err != nil {
			return nil, err
		}
		return &n, nil
	})
	return create(ctx)
}

// Get returns one note by id.
func (r *NoteRepository) Get(ctx context.Context, id int64) (*Note, error) {
	var n Note
	err := r.db.QueryRow(ctx, sqlgate.SQL(`
		SELECT note_id, title, body, revision, created_at, updated_at
		FROM notes
		WHERE note_id = ?`,
		id,
	)).Scan(&n.ID, &n.Title, &n.Body, &n.Revision, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &n, nil
}

// List returns notes, newest first, optionally filtered to the given ids.
func (r *NoteRepository) List(ctx context.Context, ids ...int64) ([]Note, error) {
	q := sqlgate.SQL(`
		SELECT note_id, title, body, revision, created_at, updated_at
		FROM notes`)
	if len(ids) > 0 {
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		q = sqlgate.SQL("? WHERE note_id IN ?", q, sqlgate.In(args...))
	}
	q = sqlgate.SQL("? ORDER BY note_id DESC", q)

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Revision, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// UpdateBody writes a new body as the next revision: the notes row and the
// revision history move together in one transaction.
func (r *NoteRepository) UpdateBody(ctx context.Context, id int64, body string) (*Note, error) {
	update := sqlgate.Transactional(r.db, func(ctx context.Context) (*Note, error) {
		var n Note
		err := r.db.QueryRow(ctx, sqlgate.SQL(`
			UPDATE notes
			SET body = ?, revision = revision + 1, updated_at = now()
			WHERE note_id = ?
			RETURNING note_id, title, body, revision, created_at, updated_at`,
			body, id,
		)).Scan(&n.ID, &n.Title, &n.Body, &n.Revision, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNoteNotFound
			}
			return nil, err
		}
		_, err = r.db.Exec(ctx, sqlgate.SQL(`
			INSERT INTO note_revisions (note_id, revision, body)
			VALUES (?, ?, ?)`,
			n.ID, n.Revision, n.Body,
		))
		if err != nil {
			return nil, err
		}
		return &n, nil
	})
	return update(ctx)
}

// Revisions returns a note's history, oldest first. Reads go through the
// silent facet: history is fetched on every detail view and would drown the
// query log.
func (r *NoteRepository) Revisions(ctx context.Context, noteID int64) ([]Revision, error) {
	rows, err := r.db.Silent.Query(ctx, sqlgate.SQL(`
		SELECT revision_id, note_id, revision, body, created_at
		FROM note_revisions
		WHERE note_id = ?
		ORDER BY revision ASC`,
		noteID,
	))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.NoteID, &rev.Revision, &rev.Body, &rev.CreatedAt); err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}
