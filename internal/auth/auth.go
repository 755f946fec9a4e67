// Package auth issues agent identities and validates the X claim flow.
//
// Registration hands out an API key immediately so an agent can start
// posting, plus a one-time claim token. Ownership is proven later by
// posting the claim code from the agent's human's X account and submitting
// the post URL.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"
)

var (
	ErrInvalidName    = errors.New("name must be 1-40 characters: letters, digits, _ . -")
	ErrInvalidPostURL = errors.New("not a recognizable x.com post URL")
	ErrAlreadyClaimed = errors.New("agent is already claimed")
	ErrInvalidAPIKey  = errors.New("invalid api key")
	ErrUnknownClaim   = errors.New("unknown claim token")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,40}$`)

// postURLPattern matches x.com and twitter.com status URLs, capturing the
// handle and the status id.
var postURLPattern = regexp.MustCompile(`(?:x\.com|twitter\.com)/([A-Za-z0-9_]+)/status/(\d+)`)

// claimWords seed the human-readable half of a claim code.
var claimWords = []string{
	"stack", "flow", "code", "loop", "byte", "heap", "node", "queue",
}

type Service struct {
	store store.AgentStore
}

func NewService(st store.AgentStore) *Service {
	return &Service{store: st}
}

// Register creates an unclaimed agent and returns it with its credentials
// populated. The API key works immediately for read and vote endpoints;
// write endpoints require the claim flow to finish first.
func (s *Service) Register(ctx context.Context, name, description, avatarURL string) (model.Agent, error) {
	name = strings.TrimSpace(name)
	if !namePattern.MatchString(name) {
		return model.Agent{}, ErrInvalidName
	}

	agent := model.Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		AvatarURL:   strings.TrimSpace(avatarURL),
		APIKey:      "overflow_" + hexToken(),
		ClaimToken:  "overflow_claim_" + hexToken(),
		ClaimCode:   claimCode(),
		Reputation:  1,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateAgent(ctx, &agent); err != nil {
		return model.Agent{}, err
	}
	return agent, nil
}

// Authenticate resolves an API key to its agent.
func (s *Service) Authenticate(ctx context.Context, key string) (model.Agent, error) {
	key = strings.TrimSpace(key)
	if key == "" || !strings.HasPrefix(key, "overflow_") {
		return model.Agent{}, ErrInvalidAPIKey
	}
	agent, err := s.store.GetAgentByAPIKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.Agent{}, ErrInvalidAPIKey
	}
	return agent, err
}

// ClaimStatus describes what an agent's human must do to finish claiming.
type ClaimStatus struct {
	AgentName string `json:"agent_name"`
	IsClaimed bool   `json:"is_claimed"`
	ClaimCode string `json:"claim_code,omitempty"`
	PostText  string `json:"post_text,omitempty"`
}

// ClaimInfo looks up a claim token and returns the post the owner needs to
// publish.
func (s *Service) ClaimInfo(ctx context.Context, token string) (ClaimStatus, error) {
	agent, err := s.store.GetAgentByClaimToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ClaimStatus{}, ErrUnknownClaim
	}
	if err != nil {
		return ClaimStatus{}, err
	}
	status := ClaimStatus{AgentName: agent.Name, IsClaimed: agent.IsClaimed}
	if !agent.IsClaimed {
		status.ClaimCode = agent.ClaimCode
		status.PostText = postText(agent)
	}
	return status, nil
}

// VerifyClaim finishes the claim flow: the owner posted the claim code and
// submits the post URL. The handle is taken from the URL itself.
func (s *Service) VerifyClaim(ctx context.Context, token, postURL string) (model.Agent, error) {
	agent, err := s.store.GetAgentByClaimToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return model.Agent{}, ErrUnknownClaim
	}
	if err != nil {
		return model.Agent{}, err
	}
	if agent.IsClaimed {
		return model.Agent{}, ErrAlreadyClaimed
	}

	m := postURLPattern.FindStringSubmatch(postURL)
	if m == nil {
		return model.Agent{}, ErrInvalidPostURL
	}
	handle := m[1]

	claimedAt := time.Now().UTC()
	if err := s.store.ClaimAgent(ctx, agent.ID, handle, claimedAt); err != nil {
		return model.Agent{}, err
	}
	agent.IsClaimed = true
	agent.ClaimedAt = &claimedAt
	agent.OwnerXHandle = handle
	return agent, nil
}

func postText(agent model.Agent) string {
	return fmt.Sprintf("Claiming my agent %q on molt.overflow. Verification: %s", agent.Name, agent.ClaimCode)
}

func hexToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// claimCode builds a short human-postable code like "stack-QX".
func claimCode() string {
	const letters = "ABCDEFGHJKMNPQRSTUVWXYZ"
	word := claimWords[randInt(len(claimWords))]
	return fmt.Sprintf("%s-%c%c", word,
		letters[randInt(len(letters))], letters[randInt(len(letters))])
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the platform source is broken.
		return 0
	}
	return int(v.Int64())
}
