// Package postgres backs the vocabulary, index and document stores with
// PostgreSQL via lib/pq.
//
// Expected schema:
//
//	CREATE TABLE words (
//	    id        BIGSERIAL PRIMARY KEY,
//	    spelling  TEXT NOT NULL,
//	    language  TEXT NOT NULL DEFAULT '',
//	    indexable BOOLEAN NOT NULL DEFAULT TRUE,
//	    UNIQUE (spelling, language)
//	);
//
//	CREATE TABLE meanings (
//	    id BIGSERIAL PRIMARY KEY
//	);
//
//	CREATE TABLE meaning_words (
//	    meaning_id BIGINT NOT NULL REFERENCES meanings (id) ON DELETE CASCADE,
//	    word_id    BIGINT NOT NULL REFERENCES words (id) ON DELETE CASCADE,
//	    PRIMARY KEY (meaning_id, word_id)
//	);
//
//	CREATE TABLE index_entries (
//	    doc_type   TEXT NOT NULL,
//	    doc_id     TEXT NOT NULL,
//	    position   INT NOT NULL,
//	    meaning_id BIGINT NOT NULL REFERENCES meanings (id) ON DELETE CASCADE,
//	    PRIMARY KEY (doc_type, doc_id, position, meaning_id)
//	);
//
//	CREATE TABLE documents (
//	    doc_type TEXT NOT NULL,
//	    doc_id   TEXT NOT NULL,
//	    body     TEXT NOT NULL,
//	    PRIMARY KEY (doc_type, doc_id)
//	);
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
	pkgpostgres "github.com/babelindex/babelindex/pkg/postgres"
)

const uniqueViolation = "23505"

// Store implements store.VocabularyStore, store.DocumentIndexStore and
// store.DocumentSource over one database.
type Store struct {
	db     *pkgpostgres.Client
	logger *slog.Logger
}

func New(db *pkgpostgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "postgres-store"),
	}
}

func (s *Store) FindWord(ctx context.Context, spelling, language string) (*vocab.Word, error) {
	var word vocab.Word
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, spelling, language, indexable FROM words WHERE spelling = $1 AND language = $2`,
		spelling, language,
	).Scan(&word.ID, &word.NormalizedSpelling, &word.Language, &word.Indexable)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "%s (%s)", spelling, language)
	}
	if err != nil {
		return nil, fmt.Errorf("finding word: %w", err)
	}
	return &word, nil
}

func (s *Store) FindWordsWithPrefix(ctx context.Context, prefix string) (map[string]struct{}, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT DISTINCT spelling FROM words WHERE indexable AND spelling LIKE $1`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("finding words with prefix: %w", err)
	}
	defer rows.Close()

	spellings := make(map[string]struct{})
	for rows.Next() {
		var spelling string
		if err := rows.Scan(&spelling); err != nil {
			return nil, fmt.Errorf("scanning spelling: %w", err)
		}
		spellings[spelling] = struct{}{}
	}
	return spellings, rows.Err()
}

func (s *Store) CreateWord(ctx context.Context, spelling, language string) (*vocab.Word, error) {
	var word vocab.Word
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO words (spelling, language) VALUES ($1, $2) RETURNING id, spelling, language, indexable`,
		spelling, language,
	).Scan(&word.ID, &word.NormalizedSpelling, &word.Language, &word.Indexable)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, apperrors.Newf(apperrors.ErrDuplicateWord, http.StatusConflict, "%s (%s)", spelling, language)
		}
		return nil, fmt.Errorf("creating word: %w", err)
	}
	return &word, nil
}

func (s *Store) DeleteWord(ctx context.Context, word *vocab.Word) error {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM words WHERE id = $1`, word.ID)
	if err != nil {
		return fmt.Errorf("deleting word: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "id %d", word.ID)
	}
	return nil
}

func (s *Store) SetWordIndexable(ctx context.Context, spelling, language string, indexable bool) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE words SET indexable = $3 WHERE spelling = $1 AND language = $2`,
		spelling, language, indexable,
	)
	if err != nil {
		return fmt.Errorf("updating word: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "%s (%s)", spelling, language)
	}
	return nil
}

func (s *Store) FindMeaningsBySpelling(ctx context.Context, spelling string) ([]*vocab.Meaning, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT DISTINCT mw.meaning_id
		   FROM meaning_words mw
		   JOIN words w ON w.id = mw.word_id
		  WHERE w.spelling = $1
		  ORDER BY mw.meaning_id`,
		spelling,
	)
	if err != nil {
		return nil, fmt.Errorf("finding meanings by spelling: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning meaning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.loadMeanings(ctx, s.db.DB, ids)
}

func (s *Store) GetMeaning(ctx context.Context, id int64) (*vocab.Meaning, error) {
	meanings, err := s.loadMeanings(ctx, s.db.DB, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(meanings) == 0 {
		return nil, apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "id %d", id)
	}
	return meanings[0], nil
}

func (s *Store) CreateMeaning(ctx context.Context, words []vocab.WordRef) (*vocab.Meaning, error) {
	var meaningID int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO meanings DEFAULT VALUES RETURNING id`,
		).Scan(&meaningID); err != nil {
			return fmt.Errorf("creating meaning: %w", err)
		}
		for _, ref := range words {
			wordID, err := upsertWord(ctx, tx, ref)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO meaning_words (meaning_id, word_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				meaningID, wordID,
			); err != nil {
				return fmt.Errorf("linking word to meaning: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMeaning(ctx, meaningID)
}

func (s *Store) JoinMeanings(ctx context.Context, survivorID int64, otherIDs []int64) (*vocab.Meaning, error) {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM meanings WHERE id = $1)`, survivorID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking survivor: %w", err)
		}
		if !exists {
			return apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "id %d", survivorID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meaning_words (meaning_id, word_id)
			 SELECT $1, word_id FROM meaning_words WHERE meaning_id = ANY($2)
			 ON CONFLICT DO NOTHING`,
			survivorID, pq.Array(otherIDs),
		); err != nil {
			return fmt.Errorf("moving words: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_entries (doc_type, doc_id, position, meaning_id)
			 SELECT doc_type, doc_id, position, $1 FROM index_entries WHERE meaning_id = ANY($2)
			 ON CONFLICT DO NOTHING`,
			survivorID, pq.Array(otherIDs),
		); err != nil {
			return fmt.Errorf("retargeting index entries: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM meanings WHERE id = ANY($1)`, pq.Array(otherIDs),
		); err != nil {
			return fmt.Errorf("deleting absorbed meanings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("meanings joined", "survivor", survivorID, "absorbed", len(otherIDs))
	return s.GetMeaning(ctx, survivorID)
}

func (s *Store) SplitMeaning(ctx context.Context, sourceID int64, replacements [][]vocab.WordRef) ([]*vocab.Meaning, error) {
	var newIDs []int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM meanings WHERE id = $1)`, sourceID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking source: %w", err)
		}
		if !exists {
			return apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "id %d", sourceID)
		}

		for _, group := range replacements {
			var newID int64
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO meanings DEFAULT VALUES RETURNING id`,
			).Scan(&newID); err != nil {
				return fmt.Errorf("creating replacement meaning: %w", err)
			}
			for _, ref := range group {
				wordID, err := upsertWord(ctx, tx, ref)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO meaning_words (meaning_id, word_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
					newID, wordID,
				); err != nil {
					return fmt.Errorf("linking word to meaning: %w", err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO index_entries (doc_type, doc_id, position, meaning_id)
				 SELECT doc_type, doc_id, position, $1 FROM index_entries WHERE meaning_id = $2
				 ON CONFLICT DO NOTHING`,
				newID, sourceID,
			); err != nil {
				return fmt.Errorf("duplicating index entries: %w", err)
			}
			newIDs = append(newIDs, newID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM meanings WHERE id = $1`, sourceID,
		); err != nil {
			return fmt.Errorf("deleting source meaning: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("meaning split", "source", sourceID, "replacements", len(newIDs))
	return s.loadMeanings(ctx, s.db.DB, newIDs)
}

func (s *Store) DeleteIndexEntries(ctx context.Context, doc vocab.DocumentRef) error {
	_, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM index_entries WHERE doc_type = $1 AND doc_id = $2`,
		doc.Type, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("deleting index entries: %w", err)
	}
	return nil
}

func (s *Store) CreateIndexEntry(ctx context.Context, doc vocab.DocumentRef, position int, meaningID int64) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO index_entries (doc_type, doc_id, position, meaning_id)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		doc.Type, doc.ID, position, meaningID,
	)
	if err != nil {
		return fmt.Errorf("creating index entry: %w", err)
	}
	return nil
}

func (s *Store) FindIndexEntries(ctx context.Context, meaningIDs []int64, docType string) ([]vocab.IndexEntry, error) {
	query := `SELECT doc_type, doc_id, position, meaning_id
	            FROM index_entries WHERE meaning_id = ANY($1)`
	args := []any{pq.Array(meaningIDs)}
	if docType != "" {
		query += ` AND doc_type = $2`
		args = append(args, docType)
	}
	query += ` ORDER BY doc_type, doc_id, position, meaning_id`

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding index entries: %w", err)
	}
	defer rows.Close()

	var entries []vocab.IndexEntry
	for rows.Next() {
		var entry vocab.IndexEntry
		if err := rows.Scan(&entry.Document.Type, &entry.Document.ID, &entry.Position, &entry.MeaningID); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, ref vocab.DocumentRef) (*vocab.Document, error) {
	doc := vocab.Document{Ref: ref}
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE doc_type = $1 AND doc_id = $2`,
		ref.Type, ref.ID,
	).Scan(&doc.Text)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "%s", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return &doc, nil
}

func (s *Store) PutDocument(ctx context.Context, doc vocab.Document) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (doc_type, doc_id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (doc_type, doc_id) DO UPDATE SET body = EXCLUDED.body`,
		doc.Ref.Type, doc.Ref.ID, doc.Text,
	)
	if err != nil {
		return fmt.Errorf("putting document: %w", err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, ref vocab.DocumentRef) error {
	_, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE doc_type = $1 AND doc_id = $2`,
		ref.Type, ref.ID,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, after vocab.DocumentRef, limit int) ([]vocab.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT doc_type, doc_id, body FROM documents
		  WHERE (doc_type, doc_id) > ($1, $2)
		  ORDER BY doc_type, doc_id
		  LIMIT $3`,
		after.Type, after.ID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []vocab.Document
	for rows.Next() {
		var doc vocab.Document
		if err := rows.Scan(&doc.Ref.Type, &doc.Ref.ID, &doc.Text); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadMeanings fetches the given meanings with their words, each meaning's
// words sorted by (spelling, language). Missing ids are silently skipped.
func (s *Store) loadMeanings(ctx context.Context, q querier, ids []int64) ([]*vocab.Meaning, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT m.id, w.id, w.spelling, w.language, w.indexable
		   FROM meanings m
		   LEFT JOIN meaning_words mw ON mw.meaning_id = m.id
		   LEFT JOIN words w ON w.id = mw.word_id
		  WHERE m.id = ANY($1)
		  ORDER BY m.id, w.spelling, w.language`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("loading meanings: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*vocab.Meaning)
	var order []int64
	for rows.Next() {
		var meaningID int64
		var wordID sql.NullInt64
		var spelling, language sql.NullString
		var indexable sql.NullBool
		if err := rows.Scan(&meaningID, &wordID, &spelling, &language, &indexable); err != nil {
			return nil, fmt.Errorf("scanning meaning row: %w", err)
		}
		meaning, ok := byID[meaningID]
		if !ok {
			meaning = &vocab.Meaning{ID: meaningID}
			byID[meaningID] = meaning
			order = append(order, meaningID)
		}
		if wordID.Valid {
			meaning.Words = append(meaning.Words, vocab.Word{
				ID:                 wordID.Int64,
				NormalizedSpelling: spelling.String,
				Language:           language.String,
				Indexable:          indexable.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	meanings := make([]*vocab.Meaning, 0, len(order))
	for _, id := range order {
		meanings = append(meanings, byID[id])
	}
	return meanings, nil
}

// upsertWord creates the word or returns the existing one's id. New words
// are indexable; existing words keep their flag.
func upsertWord(ctx context.Context, tx *sql.Tx, ref vocab.WordRef) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO words (spelling, language) VALUES ($1, $2)
		 ON CONFLICT (spelling, language) DO UPDATE SET spelling = EXCLUDED.spelling
		 RETURNING id`,
		ref.Spelling, ref.Language,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting word %q: %w", ref.Spelling, err)
	}
	return id, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
