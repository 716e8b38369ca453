// Package memory persists cross-project learnings in sqlite: code patterns,
// best practices, recorded mistakes and user feedback. The generation path
// never writes here; only explicit API calls do.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/migrations"
)

// Store is the sqlite-backed application memory.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the database at path, applies migrations and
// returns a ready store.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log := logger.With().Str("component", "memory_store").Logger()
	if err := migrations.Run(db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Memory store opened")
	return &Store{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddPattern stores a new code pattern and returns it.
func (s *Store) AddPattern(ctx context.Context, name, description, codeExample, category string) (*Pattern, error) {
	if name == "" {
		return nil, fmt.Errorf("pattern name is required")
	}
	p := &Pattern{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CodeExample: codeExample,
		Category:    category,
		CreatedAt:   time.Now().UTC(),
	}

	query, args, err := sq.Insert("patterns").
		Columns("id", "name", "description", "code_example", "category", "times_used", "created_at").
		Values(p.ID, p.Name, p.Description, p.CodeExample, p.Category, 0, p.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert pattern: %w", err)
	}
	s.logger.Debug().Str("pattern", p.ID).Str("name", name).Msg("Stored pattern")
	return p, nil
}

// ListPatterns returns patterns, optionally filtered by category, most used
// first.
func (s *Store) ListPatterns(ctx context.Context, category string) ([]Pattern, error) {
	builder := sq.Select("id", "name", "description", "code_example", "category", "times_used", "created_at").
		From("patterns").
		OrderBy("times_used DESC", "created_at DESC")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CodeExample, &p.Category, &p.TimesUsed, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordPatternUse bumps the usage counter for a pattern.
func (s *Store) RecordPatternUse(ctx context.Context, id string) error {
	query, args, err := sq.Update("patterns").
		Set("times_used", sq.Expr("times_used + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pattern %q not found", id)
	}
	return nil
}

// AddBestPractice stores a new best practice and returns it.
func (s *Store) AddBestPractice(ctx context.Context, practice, practiceContext, learnedFrom string) (*BestPractice, error) {
	if practice == "" {
		return nil, fmt.Errorf("practice text is required")
	}
	bp := &BestPractice{
		ID:          uuid.NewString(),
		Practice:    practice,
		Context:     practiceContext,
		LearnedFrom: learnedFrom,
		CreatedAt:   time.Now().UTC(),
	}

	query, args, err := sq.Insert("best_practices").
		Columns("id", "practice", "context", "learned_from", "created_at").
		Values(bp.ID, bp.Practice, bp.Context, bp.LearnedFrom, bp.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert best practice: %w", err)
	}
	return bp, nil
}

// ListBestPractices returns every recorded best practice, newest first.
func (s *Store) ListBestPractices(ctx context.Context) ([]BestPractice, error) {
	query, args, err := sq.Select("id", "practice", "context", "learned_from", "created_at").
		From("best_practices").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query best practices: %w", err)
	}
	defer rows.Close()

	var out []BestPractice
	for rows.Next() {
		var bp BestPractice
		if err := rows.Scan(&bp.ID, &bp.Practice, &bp.Context, &bp.LearnedFrom, &bp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	return out, rows.Err()
}

// RecordMistake stores a mistake. A repeat of the same mistake text from the
// same source bumps its occurrence counter instead of inserting a new row.
func (s *Store) RecordMistake(ctx context.Context, mistake, consequence, howToAvoid, source string) (*Mistake, error) {
	if mistake == "" {
		return nil, fmt.Errorf("mistake text is required")
	}

	selQuery, selArgs, err := sq.Select("id", "occurrences").
		From("mistakes").
		Where(sq.Eq{"mistake": mistake, "source": source}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var existingID string
	var occurrences int
	err = s.db.QueryRowContext(ctx, selQuery, selArgs...).Scan(&existingID, &occurrences)
	switch {
	case err == nil:
		updQuery, updArgs, buildErr := sq.Update("mistakes").
			Set("occurrences", sq.Expr("occurrences + 1")).
			Where(sq.Eq{"id": existingID}).
			ToSql()
		if buildErr != nil {
			return nil, buildErr
		}
		if _, execErr := s.db.ExecContext(ctx, updQuery, updArgs...); execErr != nil {
			return nil, fmt.Errorf("failed to bump mistake occurrences: %w", execErr)
		}
		return s.getMistake(ctx, existingID)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to look up mistake: %w", err)
	}

	m := &Mistake{
		ID:          uuid.NewString(),
		Mistake:     mistake,
		Consequence: consequence,
		HowToAvoid:  howToAvoid,
		Source:      source,
		Occurrences: 1,
		CreatedAt:   time.Now().UTC(),
	}
	insQuery, insArgs, err := sq.Insert("mistakes").
		Columns("id", "mistake", "consequence", "how_to_avoid", "source", "occurrences", "created_at").
		Values(m.ID, m.Mistake, m.Consequence, m.HowToAvoid, m.Source, m.Occurrences, m.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, insQuery, insArgs...); err != nil {
		return nil, fmt.Errorf("failed to insert mistake: %w", err)
	}
	return m, nil
}

func (s *Store) getMistake(ctx context.Context, id string) (*Mistake, error) {
	query, args, err := sq.Select("id", "mistake", "consequence", "how_to_avoid", "source", "occurrences", "created_at").
		From("mistakes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var m Mistake
	if err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&m.ID, &m.Mistake, &m.Consequence, &m.HowToAvoid, &m.Source, &m.Occurrences, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to load mistake: %w", err)
	}
	return &m, nil
}

// ListMistakes returns mistakes, optionally filtered by source, most
// frequent first.
func (s *Store) ListMistakes(ctx context.Context, source string) ([]Mistake, error) {
	builder := sq.Select("id", "mistake", "consequence", "how_to_avoid", "source", "occurrences", "created_at").
		From("mistakes").
		OrderBy("occurrences DESC", "created_at DESC")
	if source != "" {
		builder = builder.Where(sq.Eq{"source": source})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mistakes: %w", err)
	}
	defer rows.Close()

	var out []Mistake
	for rows.Next() {
		var m Mistake
		if err := rows.Scan(&m.ID, &m.Mistake, &m.Consequence, &m.HowToAvoid, &m.Source, &m.Occurrences, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddFeedback stores user feedback for a project and returns it.
func (s *Store) AddFeedback(ctx context.Context, projectID, feedback string, rating int, extractedLearning string) (*Feedback, error) {
	if feedback == "" {
		return nil, fmt.Errorf("feedback text is required")
	}
	f := &Feedback{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		Feedback:          feedback,
		Rating:            rating,
		ExtractedLearning: extractedLearning,
		CreatedAt:         time.Now().UTC(),
	}

	query, args, err := sq.Insert("feedback_learnings").
		Columns("id", "project_id", "feedback", "rating", "extracted_learning", "created_at").
		Values(f.ID, f.ProjectID, f.Feedback, f.Rating, f.ExtractedLearning, f.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns feedback entries, optionally filtered by project,
// newest first.
func (s *Store) ListFeedback(ctx context.Context, projectID string) ([]Feedback, error) {
	builder := sq.Select("id", "project_id", "feedback", "rating", "extracted_learning", "created_at").
		From("feedback_learnings").
		OrderBy("created_at DESC")
	if projectID != "" {
		builder = builder.Where(sq.Eq{"project_id": projectID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Feedback, &f.Rating, &f.ExtractedLearning, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
