package database

import (
	"context"
	"fmt"
	"strings"

	"patina/internal/domain"
)

// PatternWeightStep is added to a pattern's weight each time it is added again.
const PatternWeightStep = 0.1

const defaultPatternWeight = 1.0

func scanPattern(s rowScanner) (*domain.ReadingPattern, error) {
	var (
		p         domain.ReadingPattern
		createdAt int64
	)

	if err := s.Scan(&p.ID, &p.Kind, &p.Value, &p.Source, &p.Weight, &createdAt); err != nil {
		return nil, err
	}

	p.CreatedAt = fromUnix(createdAt)

	return &p, nil
}

func (d *Database) GetReadingPatterns(ctx context.Context) ([]domain.ReadingPattern, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `select id, pattern_type, value, source, weight, created_at
	from reading_patterns
	order by weight desc`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetReadingPatterns")

	var patterns []domain.ReadingPattern
	for rows.Next() {
		p, scanErr := scanPattern(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}

		patterns = append(patterns, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return patterns, nil
}

// AddReadingPattern inserts a pattern with the default weight. When the
// (kind, value) pair is already present its weight grows by
// PatternWeightStep instead and the source of the first insert is kept.
func (d *Database) AddReadingPattern(
	ctx context.Context,
	kind domain.PatternKind,
	value string,
	source domain.PatternSource,
) (*domain.ReadingPattern, error) {
	value = strings.TrimSpace(value)

	d.mu.Lock()
	defer d.mu.Unlock()

	insertQuery := `insert into reading_patterns (pattern_type, value, source, weight, created_at)
	values (?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, insertQuery, kind, value, source, defaultPatternWeight, nowUnix())
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("insert reading pattern: %w", err)
		}

		updateQuery := "update reading_patterns set weight = weight + ? where pattern_type = ? and value = ?"

		if _, err = d.db.ExecContext(ctx, updateQuery, PatternWeightStep, kind, value); err != nil {
			return nil, fmt.Errorf("strengthen reading pattern: %w", err)
		}
	}

	selectQuery := `select id, pattern_type, value, source, weight, created_at
	from reading_patterns
	where pattern_type = ? and value = ?`

	p, err := scanPattern(d.db.QueryRowContext(ctx, selectQuery, kind, value))
	if err != nil {
		return nil, fmt.Errorf("get stored reading pattern: %w", err)
	}

	return p, nil
}

func (d *Database) DeleteReadingPattern(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, "delete from reading_patterns where id = ?", id); err != nil {
		return fmt.Errorf("delete reading pattern: %w", err)
	}

	return nil
}

func (d *Database) ResetReadingPatterns(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, "delete from reading_patterns"); err != nil {
		return fmt.Errorf("reset reading patterns: %w", err)
	}

	return nil
}
