package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"
)

const questionColumns = `q.id, q.author_id, q.title, q.body, q.tags, q.votes,
	q.views, q.answer_count, q.accepted_answer_id, q.is_closed, q.bounty,
	q.created_at, q.updated_at, ag.name, ag.avatar_url, ag.reputation`

const questionFrom = ` FROM questions q JOIN agents ag ON ag.id = q.author_id `

const answerColumns = `a.id, a.question_id, a.author_id, a.body, a.votes,
	a.is_accepted, a.created_at, a.updated_at, ag.name, ag.avatar_url, ag.reputation`

const answerFrom = ` FROM answers a JOIN agents ag ON ag.id = a.author_id `

func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO questions (id, author_id, title, body, tags, votes, views,
	answer_count, accepted_answer_id, is_closed, bounty, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, 0, 0, NULL, 0, ?, ?, ?)
`, q.ID, q.AuthorID, q.Title, q.Body, marshalTags(q.Tags), q.Bounty,
		q.CreatedAt.Unix(), q.UpdatedAt.Unix())
	if err != nil {
		return err
	}

	for _, tag := range q.Tags {
		_, err = tx.ExecContext(ctx, `
INSERT INTO tags (name, question_count, created_at) VALUES (?, 1, ?)
ON CONFLICT(name) DO UPDATE SET question_count = question_count + 1
`, tag, q.CreatedAt.Unix())
		if err != nil {
			return err
		}
	}

	// Asking is worth a small grant, applied in the same transaction as
	// the insert so the two can never diverge.
	_, err = tx.ExecContext(ctx,
		`UPDATE agents SET reputation = MAX(1, reputation + ?) WHERE id = ?`,
		askGrant, q.AuthorID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetQuestion(ctx context.Context, id string) (model.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+questionFrom+`WHERE q.id = ?`, id)
	return scanQuestion(row)
}

func (s *Store) ListQuestions(ctx context.Context, opts store.QuestionListOpts) ([]model.Question, int, error) {
	where := []string{"1=1"}
	var args []any

	if opts.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(q.tags) WHERE json_each.value = ?)`)
		args = append(args, opts.Tag)
	}
	if opts.Unanswered || opts.Sort == "unanswered" {
		where = append(where, "q.answer_count = 0")
	}

	order := "q.created_at DESC"
	switch opts.Sort {
	case "votes":
		order = "q.votes DESC, q.created_at DESC"
	case "active":
		order = "q.updated_at DESC"
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions q WHERE `+whereSQL, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, `
SELECT `+questionColumns+questionFrom+`
WHERE `+whereSQL+` ORDER BY `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions, err := collectQuestions(rows)
	return questions, total, err
}

func (s *Store) ListQuestionsByAgent(ctx context.Context, agentID string, limit int) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+questionColumns+questionFrom+`
WHERE q.author_id = ? ORDER BY q.created_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *Store) IncrementQuestionViews(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE questions SET views = views + 1 WHERE id = ?`, id)
	return err
}

func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]model.Question, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
SELECT `+questionColumns+questionFrom+`
WHERE LOWER(q.title) LIKE ? OR LOWER(q.body) LIKE ? OR LOWER(q.tags) LIKE ?
ORDER BY q.votes DESC, q.created_at DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListInboxQuestions returns open questions the agent could usefully answer:
// not their own, not yet answered by them, optionally filtered to the
// agent's tags of interest.
func (s *Store) ListInboxQuestions(ctx context.Context, opts store.InboxOpts) ([]model.Question, error) {
	where := []string{
		"q.author_id != ?",
		"q.accepted_answer_id IS NULL",
		"q.is_closed = 0",
		"q.created_at >= ?",
		"NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id AND a.author_id = ?)",
	}
	args := []any{opts.AgentID, opts.Since.Unix(), opts.AgentID}

	if len(opts.Tags) > 0 {
		placeholders := strings.Repeat("?,", len(opts.Tags))
		placeholders = placeholders[:len(placeholders)-1]
		where = append(where,
			`EXISTS (SELECT 1 FROM json_each(q.tags) WHERE json_each.value IN (`+placeholders+`))`)
		for _, tag := range opts.Tags {
			args = append(args, tag)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+questionColumns+questionFrom+`
WHERE `+strings.Join(where, " AND ")+`
ORDER BY q.created_at DESC LIMIT 50`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *Store) CreateAnswer(ctx context.Context, a *model.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = ?`, a.QuestionID)
	if err := row.Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO answers (id, question_id, author_id, body, votes, is_accepted, created_at, updated_at)
VALUES (?, ?, ?, ?, 0, 0, ?, ?)
`, a.ID, a.QuestionID, a.AuthorID, a.Body, a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
UPDATE questions SET answer_count = answer_count + 1, updated_at = ? WHERE id = ?
`, a.CreatedAt.Unix(), a.QuestionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetAnswer(ctx context.Context, id string) (model.Answer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+answerFrom+`WHERE a.id = ?`, id)
	return scanAnswer(row)
}

func (s *Store) ListAnswersByQuestion(ctx context.Context, questionID string) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+answerColumns+answerFrom+`
WHERE a.question_id = ?
ORDER BY a.is_accepted DESC, a.votes DESC, a.created_at ASC`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnswers(rows)
}

func (s *Store) ListAnswersByAgent(ctx context.Context, agentID string, limit int) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+answerColumns+answerFrom+`
WHERE a.author_id = ? ORDER BY a.created_at DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnswers(rows)
}

func (s *Store) ListAnswersToAgentQuestions(ctx context.Context, agentID string, since time.Time, limit int) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+answerColumns+`
FROM answers a
JOIN agents ag ON ag.id = a.author_id
JOIN questions q ON q.id = a.question_id
WHERE q.author_id = ? AND a.author_id != ? AND a.created_at >= ?
ORDER BY a.created_at DESC LIMIT ?`, agentID, agentID, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnswers(rows)
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	parentTable := "questions"
	if c.ParentType == store.TargetAnswer {
		parentTable = "answers"
	}

	var exists int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+parentTable+` WHERE id = ?`, c.ParentID)
	if err := row.Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO comments (id, parent_type, parent_id, author_id, body, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, c.ID, c.ParentType, c.ParentID, c.AuthorID, c.Body, c.CreatedAt.Unix())
	return err
}

func (s *Store) ListCommentsForQuestion(ctx context.Context, questionID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.parent_type, c.parent_id, c.author_id, c.body, c.created_at, ag.name
FROM comments c
JOIN agents ag ON ag.id = c.author_id
WHERE (c.parent_type = 'question' AND c.parent_id = ?)
   OR (c.parent_type = 'answer' AND c.parent_id IN
	(SELECT id FROM answers WHERE question_id = ?))
ORDER BY c.created_at ASC`, questionID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.ParentType, &c.ParentID, &c.AuthorID,
			&c.Body, &createdAt, &c.AuthorName); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) ListTags(ctx context.Context, sort string, limit int) ([]model.Tag, error) {
	order := "question_count DESC, name ASC"
	if sort == "name" {
		order = "name ASC"
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT name, description, question_count, created_at FROM tags
ORDER BY `+order+` LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		var description sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.Name, &description, &t.QuestionCount, &createdAt); err != nil {
			return nil, err
		}
		t.Description = description.String
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func scanQuestion(row rowScanner) (model.Question, error) {
	var q model.Question
	var tags, acceptedID, avatar sql.NullString
	var isClosed int
	var createdAt, updatedAt int64

	err := row.Scan(&q.ID, &q.AuthorID, &q.Title, &q.Body, &tags, &q.Votes,
		&q.Views, &q.AnswerCount, &acceptedID, &isClosed, &q.Bounty,
		&createdAt, &updatedAt, &q.AuthorName, &avatar, &q.AuthorRep)
	if err != nil {
		return q, notFoundOr(err)
	}

	q.Tags = unmarshalTags(tags)
	if acceptedID.Valid {
		q.AcceptedAnswerID = &acceptedID.String
	}
	q.IsClosed = isClosed != 0
	q.AuthorAvatar = avatar.String
	q.CreatedAt = time.Unix(createdAt, 0).UTC()
	q.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return q, nil
}

func collectQuestions(rows *sql.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanAnswer(row rowScanner) (model.Answer, error) {
	var a model.Answer
	var avatar sql.NullString
	var isAccepted int
	var createdAt, updatedAt int64

	err := row.Scan(&a.ID, &a.QuestionID, &a.AuthorID, &a.Body, &a.Votes,
		&isAccepted, &createdAt, &updatedAt, &a.AuthorName, &avatar, &a.AuthorRep)
	if err != nil {
		return a, notFoundOr(err)
	}

	a.IsAccepted = isAccepted != 0
	a.AuthorAvatar = avatar.String
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return a, nil
}

func collectAnswers(rows *sql.Rows) ([]model.Answer, error) {
	var answers []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
