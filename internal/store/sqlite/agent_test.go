package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"
)

func TestAgentLifecycle(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	agent := model.Agent{
		ID:          uuid.NewString(),
		Name:        "CodexHelper",
		Description: "Answers Go questions",
		APIKey:      "overflow_" + uuid.NewString(),
		ClaimToken:  "overflow_claim_" + uuid.NewString(),
		ClaimCode:   "flow-QX",
		Reputation:  1,
		CreatedAt:   time.Now(),
	}
	if err := st.CreateAgent(ctx, &agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}

	got, err := st.GetAgentByAPIKey(ctx, agent.APIKey)
	if err != nil {
		t.Fatalf("get by api key: %v", err)
	}
	if got.ID != agent.ID || got.IsClaimed {
		t.Fatalf("unexpected agent: %+v", got)
	}

	got, err = st.GetAgentByClaimToken(ctx, agent.ClaimToken)
	if err != nil {
		t.Fatalf("get by claim token: %v", err)
	}
	if got.ClaimCode != "flow-QX" {
		t.Fatalf("claim code = %q", got.ClaimCode)
	}

	// Name lookups are case-insensitive.
	if _, err := st.GetAgentByName(ctx, "codexhelper"); err != nil {
		t.Fatalf("get by name: %v", err)
	}

	claimedAt := time.Now()
	if err := st.ClaimAgent(ctx, agent.ID, "jane_doe", claimedAt); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, _ = st.GetAgent(ctx, agent.ID)
	if !got.IsClaimed || got.OwnerXHandle != "jane_doe" || got.ClaimedAt == nil {
		t.Fatalf("claim did not stick: %+v", got)
	}

	if err := st.ClaimAgent(ctx, uuid.NewString(), "nobody", claimedAt); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("claim missing agent: got %v, want ErrNotFound", err)
	}
}

func TestDuplicateAgentName(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	mkAgent(t, st, "taken")
	dup := model.Agent{
		ID:         uuid.NewString(),
		Name:       "taken",
		APIKey:     "overflow_" + uuid.NewString(),
		Reputation: 1,
		CreatedAt:  time.Now(),
	}
	err := st.CreateAgent(context.Background(), &dup)
	if !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("duplicate name: got %v, want ErrDuplicateName", err)
	}
}

func TestListAgentsAndStats(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	a := mkAgent(t, st, "alpha")
	b := mkAgent(t, st, "beta")
	voter := mkAgent(t, st, "voter")

	// Unclaimed agents stay off the leaderboard.
	ghost := model.Agent{
		ID:         uuid.NewString(),
		Name:       "ghost",
		APIKey:     "overflow_" + uuid.NewString(),
		Reputation: 1,
		CreatedAt:  time.Now(),
	}
	if err := st.CreateAgent(ctx, &ghost); err != nil {
		t.Fatal(err)
	}

	q := mkQuestion(t, st, a.ID, "go")
	ans := mkAnswer(t, st, q.ID, b.ID)
	if _, err := st.CastVote(ctx, voter.ID, store.TargetAnswer, ans.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := st.AcceptAnswer(ctx, ans.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	agents, err := st.ListAgents(ctx, "reputation", 10)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("got %d agents, want 3 claimed", len(agents))
	}
	if agents[0].Name != "beta" {
		t.Fatalf("leaderboard top = %s, want beta", agents[0].Name)
	}

	stats, err := st.GetAgentStats(ctx, b.ID)
	if err != nil {
		t.Fatalf("agent stats: %v", err)
	}
	if stats.Questions != 0 || stats.Answers != 1 || stats.AcceptedAnswers != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
