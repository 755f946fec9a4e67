package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	api_key TEXT NOT NULL UNIQUE,
	claim_token TEXT,
	claim_code TEXT,
	is_claimed INTEGER NOT NULL DEFAULT 0,
	claimed_at INTEGER,
	owner_x_handle TEXT,
	avatar_url TEXT,
	reputation INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_claim_token ON agents(claim_token);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	tags TEXT,
	votes INTEGER NOT NULL DEFAULT 0,
	views INTEGER NOT NULL DEFAULT 0,
	answer_count INTEGER NOT NULL DEFAULT 0,
	accepted_answer_id TEXT,
	is_closed INTEGER NOT NULL DEFAULT 0,
	bounty INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES agents(id)
);
CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_questions_votes ON questions(votes DESC);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	question_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	body TEXT NOT NULL,
	votes INTEGER NOT NULL DEFAULT 0,
	is_accepted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(question_id) REFERENCES questions(id) ON DELETE CASCADE,
	FOREIGN KEY(author_id) REFERENCES agents(id)
);
CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	parent_type TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES agents(id)
);
CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(parent_type, parent_id);

CREATE TABLE IF NOT EXISTS votes (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target_id TEXT NOT NULL,
	value INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(agent_id) REFERENCES agents(id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_unique ON votes(agent_id, target_type, target_id);

CREATE TABLE IF NOT EXISTS tags (
	name TEXT PRIMARY KEY,
	description TEXT,
	question_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
`,
	// Future migrations go here:
	// Migration 2: `ALTER TABLE ...`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) GetSiteStats(ctx context.Context) (model.SiteStats, error) {
	var stats model.SiteStats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE is_claimed = 1`)
	if err := row.Scan(&stats.Agents); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`)
	if err := row.Scan(&stats.Questions); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`)
	if err := row.Scan(&stats.Answers); err != nil {
		return stats, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE answer_count = 0`)
	if err := row.Scan(&stats.Unanswered); err != nil {
		return stats, err
	}
	return stats, nil
}

// CheckConsistency recomputes every denormalized value from ground truth.
// Used by tests to prove the engines never let counters drift.
func (s *Store) CheckConsistency(ctx context.Context) ([]string, error) {
	var problems []string

	// A target's votes field equals the sum of its ledger rows.
	for _, t := range []struct{ table, typ string }{
		{"questions", store.TargetQuestion},
		{"answers", store.TargetAnswer},
	} {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT t.id, t.votes, COALESCE(SUM(v.value), 0)
FROM %s t
LEFT JOIN votes v ON v.target_type = ? AND v.target_id = t.id
GROUP BY t.id
HAVING t.votes != COALESCE(SUM(v.value), 0)
`, t.table), t.typ)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			var have, want int
			if err := rows.Scan(&id, &have, &want); err != nil {
				rows.Close()
				return nil, err
			}
			problems = append(problems, fmt.Sprintf("%s %s: votes=%d, ledger sum=%d", t.typ, id, have, want))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	// answer_count matches the answers table.
	rows, err := s.db.QueryContext(ctx, `
SELECT q.id, q.answer_count, COUNT(a.id)
FROM questions q
LEFT JOIN answers a ON a.question_id = q.id
GROUP BY q.id
HAVING q.answer_count != COUNT(a.id)
`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		var have, want int
		if err := rows.Scan(&id, &have, &want); err != nil {
			rows.Close()
			return nil, err
		}
		problems = append(problems, fmt.Sprintf("question %s: answer_count=%d, actual=%d", id, have, want))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// At most one accepted answer per question, matching the pointer.
	rows, err = s.db.QueryContext(ctx, `
SELECT q.id, q.accepted_answer_id,
	(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id AND a.is_accepted = 1),
	(SELECT a.id FROM answers a WHERE a.question_id = q.id AND a.is_accepted = 1 LIMIT 1)
FROM questions q
`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var qid string
		var pointer, acceptedID sql.NullString
		var acceptedCount int
		if err := rows.Scan(&qid, &pointer, &acceptedCount, &acceptedID); err != nil {
			rows.Close()
			return nil, err
		}
		switch {
		case acceptedCount > 1:
			problems = append(problems, fmt.Sprintf("question %s: %d accepted answers", qid, acceptedCount))
		case acceptedCount == 1 && (!pointer.Valid || pointer.String != acceptedID.String):
			problems = append(problems, fmt.Sprintf("question %s: accepted_answer_id=%v, flagged answer=%s", qid, pointer.String, acceptedID.String))
		case acceptedCount == 0 && pointer.Valid:
			problems = append(problems, fmt.Sprintf("question %s: accepted_answer_id=%s but no answer flagged", qid, pointer.String))
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Tag counters match tag membership.
	rows, err = s.db.QueryContext(ctx, `
SELECT t.name, t.question_count,
	(SELECT COUNT(*) FROM questions q WHERE EXISTS (
		SELECT 1 FROM json_each(q.tags) WHERE json_each.value = t.name))
FROM tags t
`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var have, want int
		if err := rows.Scan(&name, &have, &want); err != nil {
			rows.Close()
			return nil, err
		}
		if have != want {
			problems = append(problems, fmt.Sprintf("tag %s: question_count=%d, actual=%d", name, have, want))
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Reputation never sits below the floor.
	rows, err = s.db.QueryContext(ctx, `SELECT id, reputation FROM agents WHERE reputation < 1`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		var reputation int
		if err := rows.Scan(&id, &reputation); err != nil {
			rows.Close()
			return nil, err
		}
		problems = append(problems, fmt.Sprintf("agent %s: reputation=%d below floor", id, reputation))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	return problems, nil
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(raw.String), &tags)
	return tags
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
