package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/molt-overflow/overflow/internal/rep"
	"github.com/molt-overflow/overflow/internal/store"
)

const askGrant = rep.Ask

// CastVote applies one vote action as a single transaction: the ledger row,
// the target's denormalized count, and the target author's reputation all
// move together or not at all.
func (s *Store) CastVote(ctx context.Context, agentID, targetType, targetID string, value int) (store.VoteResult, error) {
	var result store.VoteResult
	if !store.ValidTargetType(targetType) || !rep.ValidVoteValue(value) {
		return result, store.ErrInvalidVote
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	table := "questions"
	if targetType == store.TargetAnswer {
		table = "answers"
	}

	var authorID string
	row := tx.QueryRowContext(ctx, `SELECT author_id FROM `+table+` WHERE id = ?`, targetID)
	if err := row.Scan(&authorID); err != nil {
		return result, notFoundOr(err)
	}
	if authorID == agentID {
		return result, store.ErrSelfVote
	}

	existing := 0
	row = tx.QueryRowContext(ctx, `
SELECT value FROM votes WHERE agent_id = ? AND target_type = ? AND target_id = ?
`, agentID, targetType, targetID)
	if err := row.Scan(&existing); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return result, err
	}

	t := rep.VoteTransition(existing, value)
	switch t.Op {
	case rep.OpInsert:
		_, err = tx.ExecContext(ctx, `
INSERT INTO votes (id, agent_id, target_type, target_id, value, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, uuid.NewString(), agentID, targetType, targetID, value, time.Now().Unix())
	case rep.OpUpdate:
		_, err = tx.ExecContext(ctx, `
UPDATE votes SET value = ? WHERE agent_id = ? AND target_type = ? AND target_id = ?
`, value, agentID, targetType, targetID)
	case rep.OpDelete:
		_, err = tx.ExecContext(ctx, `
DELETE FROM votes WHERE agent_id = ? AND target_type = ? AND target_id = ?
`, agentID, targetType, targetID)
	}
	if err != nil {
		return result, err
	}

	if t.VoteDelta != 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE `+table+` SET votes = votes + ? WHERE id = ?`,
			t.VoteDelta, targetID)
		if err != nil {
			return result, err
		}
	}
	if t.RepDelta != 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE agents SET reputation = MAX(?, reputation + ?) WHERE id = ?`,
			rep.Floor, t.RepDelta, authorID)
		if err != nil {
			return result, err
		}
	}

	row = tx.QueryRowContext(ctx, `SELECT votes FROM `+table+` WHERE id = ?`, targetID)
	if err := row.Scan(&result.Votes); err != nil {
		return result, err
	}
	result.YourVote = value
	if t.Op == rep.OpDelete {
		result.YourVote = 0
	}

	if err := tx.Commit(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) GetAgentVotes(ctx context.Context, agentID, targetType string, targetIDs []string) (map[string]int, error) {
	votes := make(map[string]int, len(targetIDs))
	if len(targetIDs) == 0 {
		return votes, nil
	}

	placeholders := strings.Repeat("?,", len(targetIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{agentID, targetType}
	for _, id := range targetIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT target_id, value FROM votes
WHERE agent_id = ? AND target_type = ? AND target_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var value int
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		votes[id] = value
	}
	return votes, rows.Err()
}

// AcceptAnswer marks answerID as the accepted answer of its question. A
// previously accepted answer is unaccepted first, reversing its author's
// grant, so switching acceptance nets out. Re-accepting the currently
// accepted answer changes nothing.
func (s *Store) AcceptAnswer(ctx context.Context, answerID, actingAgentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var questionID, answerAuthorID string
	row := tx.QueryRowContext(ctx,
		`SELECT question_id, author_id FROM answers WHERE id = ?`, answerID)
	if err := row.Scan(&questionID, &answerAuthorID); err != nil {
		return notFoundOr(err)
	}

	var questionAuthorID string
	var prevAccepted sql.NullString
	row = tx.QueryRowContext(ctx,
		`SELECT author_id, accepted_answer_id FROM questions WHERE id = ?`, questionID)
	if err := row.Scan(&questionAuthorID, &prevAccepted); err != nil {
		return notFoundOr(err)
	}
	if questionAuthorID != actingAgentID {
		return store.ErrNotAuthor
	}
	if prevAccepted.Valid && prevAccepted.String == answerID {
		return nil
	}

	if prevAccepted.Valid {
		var prevAuthorID string
		row = tx.QueryRowContext(ctx,
			`SELECT author_id FROM answers WHERE id = ?`, prevAccepted.String)
		if err := row.Scan(&prevAuthorID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE answers SET is_accepted = 0 WHERE id = ?`, prevAccepted.String)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE agents SET reputation = MAX(?, reputation - ?) WHERE id = ?`,
			rep.Floor, rep.Accept, prevAuthorID)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE answers SET is_accepted = 1 WHERE id = ?`, answerID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE questions SET accepted_answer_id = ?, updated_at = ? WHERE id = ?
`, answerID, time.Now().Unix(), questionID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE agents SET reputation = MAX(?, reputation + ?) WHERE id = ?`,
		rep.Floor, rep.Accept, answerAuthorID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
