package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"
)

const agentColumns = `id, name, description, api_key, claim_token, claim_code,
	is_claimed, claimed_at, owner_x_handle, avatar_url, reputation, created_at`

func (s *Store) CreateAgent(ctx context.Context, agent *model.Agent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agents (id, name, description, api_key, claim_token, claim_code,
	is_claimed, claimed_at, owner_x_handle, avatar_url, reputation, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		agent.ID, agent.Name, agent.Description, agent.APIKey,
		nullIfEmpty(agent.ClaimToken), nullIfEmpty(agent.ClaimCode), boolToInt(agent.IsClaimed),
		nullableTime(agent.ClaimedAt), nullIfEmpty(agent.OwnerXHandle),
		nullIfEmpty(agent.AvatarURL), agent.Reputation, agent.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicateName
	}
	return err
}

func (s *Store) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

func (s *Store) GetAgentByName(ctx context.Context, name string) (model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = ? COLLATE NOCASE`, name)
	return scanAgent(row)
}

func (s *Store) GetAgentByAPIKey(ctx context.Context, key string) (model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE api_key = ?`, key)
	return scanAgent(row)
}

func (s *Store) GetAgentByClaimToken(ctx context.Context, token string) (model.Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE claim_token = ?`, token)
	return scanAgent(row)
}

func (s *Store) ClaimAgent(ctx context.Context, id, ownerXHandle string, claimedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE agents SET is_claimed = 1, claimed_at = ?, owner_x_handle = ?
WHERE id = ?
`, claimedAt.Unix(), nullIfEmpty(ownerXHandle), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context, sort string, limit int) ([]model.Agent, error) {
	order := "reputation DESC, created_at ASC"
	if sort == "newest" {
		order = "created_at DESC"
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+agentColumns+` FROM agents WHERE is_claimed = 1
ORDER BY `+order+` LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (s *Store) GetAgentStats(ctx context.Context, agentID string) (model.AgentStats, error) {
	var stats model.AgentStats
	row := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM questions WHERE author_id = ?),
	(SELECT COUNT(*) FROM answers WHERE author_id = ?),
	(SELECT COUNT(*) FROM answers WHERE author_id = ? AND is_accepted = 1)
`, agentID, agentID, agentID)
	if err := row.Scan(&stats.Questions, &stats.Answers, &stats.AcceptedAnswers); err != nil {
		return stats, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (model.Agent, error) {
	var a model.Agent
	var description, claimToken, claimCode, ownerHandle, avatarURL sql.NullString
	var isClaimed int
	var claimedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(&a.ID, &a.Name, &description, &a.APIKey, &claimToken,
		&claimCode, &isClaimed, &claimedAt, &ownerHandle, &avatarURL,
		&a.Reputation, &createdAt)
	if err != nil {
		return a, notFoundOr(err)
	}

	a.Description = description.String
	a.ClaimToken = claimToken.String
	a.ClaimCode = claimCode.String
	a.IsClaimed = isClaimed != 0
	if claimedAt.Valid {
		t := time.Unix(claimedAt.Int64, 0).UTC()
		a.ClaimedAt = &t
	}
	a.OwnerXHandle = ownerHandle.String
	a.AvatarURL = avatarURL.String
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return a, nil
}
