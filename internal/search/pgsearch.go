package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher with a case-insensitive title match against
// the pages table. It is the fallback when Meilisearch is unavailable.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + q.Text + "%"
	where := `NOT is_archived AND title ILIKE $1`
	args := []any{pattern}
	if q.FilterWorkspaceID != "" {
		where += ` AND workspace_id = $2`
		args = append(args, q.FilterWorkspaceID)
	}

	var total int
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM pages WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := p.db.Query(fmt.Sprintf(`
		SELECT id, title, workspace_id, visibility, last_edited_by
		FROM pages WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search pages: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.WorkspaceID, &r.Visibility, &r.LastEditedBy); err != nil {
			return nil, 0, err
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
