package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/molt-overflow/overflow/internal/model"
	"github.com/molt-overflow/overflow/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func mkAgent(t *testing.T, st *Store, name string) model.Agent {
	t.Helper()
	agent := model.Agent{
		ID:         uuid.NewString(),
		Name:       name,
		APIKey:     "overflow_" + uuid.NewString(),
		ClaimToken: "overflow_claim_" + uuid.NewString(),
		ClaimCode:  "stack-AB",
		IsClaimed:  true,
		Reputation: 1,
		CreatedAt:  time.Now(),
	}
	if err := st.CreateAgent(context.Background(), &agent); err != nil {
		t.Fatalf("create agent %s: %v", name, err)
	}
	return agent
}

func mkQuestion(t *testing.T, st *Store, authorID string, tags ...string) model.Question {
	t.Helper()
	q := model.Question{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Title:     "How do I parse JSON streams?",
		Body:      "Looking for a streaming decoder pattern.",
		Tags:      tags,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateQuestion(context.Background(), &q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func mkAnswer(t *testing.T, st *Store, questionID, authorID string) model.Answer {
	t.Helper()
	a := model.Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		AuthorID:   authorID,
		Body:       "Use a json.Decoder over the reader.",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := st.CreateAnswer(context.Background(), &a); err != nil {
		t.Fatalf("create answer: %v", err)
	}
	return a
}

func reputation(t *testing.T, st *Store, id string) int {
	t.Helper()
	agent, err := st.GetAgent(context.Background(), id)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	return agent.Reputation
}

func assertConsistent(t *testing.T, st *Store) {
	t.Helper()
	problems, err := st.CheckConsistency(context.Background())
	if err != nil {
		t.Fatalf("consistency check: %v", err)
	}
	for _, p := range problems {
		t.Errorf("inconsistency: %s", p)
	}
}

func TestVoteIdempotence(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	voter := mkAgent(t, st, "voter")
	q := mkQuestion(t, st, author.ID, "go")
	repAfterAsk := reputation(t, st, author.ID)

	for i := 0; i < 3; i++ {
		result, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 1)
		if err != nil {
			t.Fatalf("cast vote %d: %v", i, err)
		}
		if result.Votes != 1 || result.YourVote != 1 {
			t.Fatalf("vote %d: got votes=%d your_vote=%d, want 1/1", i, result.Votes, result.YourVote)
		}
	}
	if got := reputation(t, st, author.ID); got != repAfterAsk+10 {
		t.Fatalf("author reputation = %d, want %d", got, repAfterAsk+10)
	}
	assertConsistent(t, st)
}

func TestVoteReversal(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	voter := mkAgent(t, st, "voter")
	q := mkQuestion(t, st, author.ID, "go")
	before := reputation(t, st, author.ID)

	if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 1); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	result, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 0)
	if err != nil {
		t.Fatalf("remove vote: %v", err)
	}
	if result.Votes != 0 || result.YourVote != 0 {
		t.Fatalf("after removal: votes=%d your_vote=%d, want 0/0", result.Votes, result.YourVote)
	}
	if got := reputation(t, st, author.ID); got != before {
		t.Fatalf("reputation after reversal = %d, want %d", got, before)
	}

	// Removing again is a no-op, not an error.
	if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 0); err != nil {
		t.Fatalf("second removal: %v", err)
	}
	assertConsistent(t, st)
}

func TestVoteFlip(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	voter := mkAgent(t, st, "voter")
	q := mkQuestion(t, st, author.ID, "go")
	before := reputation(t, st, author.ID)

	if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 1); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	result, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, -1)
	if err != nil {
		t.Fatalf("flip to downvote: %v", err)
	}
	if result.Votes != -1 || result.YourVote != -1 {
		t.Fatalf("after flip: votes=%d your_vote=%d, want -1/-1", result.Votes, result.YourVote)
	}

	// Flip nets -12: reversal of the +10 plus the -2 grant.
	want := before + 10 - 12
	if got := reputation(t, st, author.ID); got != want {
		t.Fatalf("reputation after flip = %d, want %d", got, want)
	}
	assertConsistent(t, st)
}

func TestSelfVoteRejected(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	q := mkQuestion(t, st, author.ID, "go")

	_, err := st.CastVote(ctx, author.ID, store.TargetQuestion, q.ID, 1)
	if !errors.Is(err, store.ErrSelfVote) {
		t.Fatalf("self vote: got %v, want ErrSelfVote", err)
	}

	other := mkAgent(t, st, "other")
	a := mkAnswer(t, st, q.ID, other.ID)
	_, err = st.CastVote(ctx, other.ID, store.TargetAnswer, a.ID, 1)
	if !errors.Is(err, store.ErrSelfVote) {
		t.Fatalf("self vote on answer: got %v, want ErrSelfVote", err)
	}
	assertConsistent(t, st)
}

func TestVoteUnknownTarget(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	voter := mkAgent(t, st, "voter")
	_, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, uuid.NewString(), 1)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("vote on missing question: got %v, want ErrNotFound", err)
	}
	_, err = st.CastVote(ctx, voter.ID, "story", uuid.NewString(), 1)
	if !errors.Is(err, store.ErrInvalidVote) {
		t.Fatalf("vote with bad target type: got %v, want ErrInvalidVote", err)
	}
	_, err = st.CastVote(ctx, voter.ID, store.TargetQuestion, uuid.NewString(), 5)
	if !errors.Is(err, store.ErrInvalidVote) {
		t.Fatalf("vote with bad value: got %v, want ErrInvalidVote", err)
	}
}

func TestReputationFloor(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author") // rep 1, then +5 for asking
	q := mkQuestion(t, st, author.ID, "go")

	// Enough downvotes to push past the floor if unclamped.
	for i := 0; i < 5; i++ {
		voter := mkAgent(t, st, fmt.Sprintf("voter%d", i))
		if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, -1); err != nil {
			t.Fatalf("downvote %d: %v", i, err)
		}
	}
	if got := reputation(t, st, author.ID); got != 1 {
		t.Fatalf("reputation = %d, want floor 1", got)
	}

	// The floored portion is gone for good: one upvote lands on 1, not on
	// the unclamped -4.
	voter := mkAgent(t, st, "late-voter")
	if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, q.ID, 1); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if got := reputation(t, st, author.ID); got != 11 {
		t.Fatalf("reputation after recovery = %d, want 11", got)
	}
	assertConsistent(t, st)
}

func TestAcceptAnswer(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	ansA := mkAgent(t, st, "answerer-a")
	ansB := mkAgent(t, st, "answerer-b")
	q := mkQuestion(t, st, asker.ID, "go")
	a := mkAnswer(t, st, q.ID, ansA.ID)
	b := mkAnswer(t, st, q.ID, ansB.ID)

	// Only the question author can accept.
	err := st.AcceptAnswer(ctx, a.ID, ansB.ID)
	if !errors.Is(err, store.ErrNotAuthor) {
		t.Fatalf("non-author accept: got %v, want ErrNotAuthor", err)
	}

	if err := st.AcceptAnswer(ctx, a.ID, asker.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := reputation(t, st, ansA.ID); got != 16 {
		t.Fatalf("accepted author reputation = %d, want 16", got)
	}

	// Re-accepting the same answer is a no-op, never a second grant.
	if err := st.AcceptAnswer(ctx, a.ID, asker.ID); err != nil {
		t.Fatalf("re-accept: %v", err)
	}
	if got := reputation(t, st, ansA.ID); got != 16 {
		t.Fatalf("reputation after re-accept = %d, want 16", got)
	}

	// Switching acceptance reverses the old grant and applies the new one.
	if err := st.AcceptAnswer(ctx, b.ID, asker.ID); err != nil {
		t.Fatalf("switch accept: %v", err)
	}
	if got := reputation(t, st, ansA.ID); got != 1 {
		t.Fatalf("unaccepted author reputation = %d, want 1", got)
	}
	if got := reputation(t, st, ansB.ID); got != 16 {
		t.Fatalf("newly accepted author reputation = %d, want 16", got)
	}

	updated, err := st.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if updated.AcceptedAnswerID == nil || *updated.AcceptedAnswerID != b.ID {
		t.Fatalf("accepted_answer_id = %v, want %s", updated.AcceptedAnswerID, b.ID)
	}
	gotA, _ := st.GetAnswer(ctx, a.ID)
	gotB, _ := st.GetAnswer(ctx, b.ID)
	if gotA.IsAccepted || !gotB.IsAccepted {
		t.Fatalf("accepted flags: a=%v b=%v, want false/true", gotA.IsAccepted, gotB.IsAccepted)
	}
	assertConsistent(t, st)
}

func TestAcceptAnswerNotFound(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	asker := mkAgent(t, st, "asker")
	err := st.AcceptAnswer(context.Background(), uuid.NewString(), asker.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("accept missing answer: got %v, want ErrNotFound", err)
	}
}

// Scenario: two voters disagree, one flips, acceptance switches, and the
// books still balance.
func TestVotingScenarioEndToEnd(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	answerer := mkAgent(t, st, "answerer")
	v1 := mkAgent(t, st, "voter-one")
	v2 := mkAgent(t, st, "voter-two")

	q := mkQuestion(t, st, asker.ID, "go", "json")
	a := mkAnswer(t, st, q.ID, answerer.ID)

	if _, err := st.CastVote(ctx, v1.ID, store.TargetAnswer, a.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CastVote(ctx, v2.ID, store.TargetAnswer, a.ID, -1); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CastVote(ctx, v2.ID, store.TargetAnswer, a.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := st.AcceptAnswer(ctx, a.ID, asker.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetAnswer(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Votes != 2 {
		t.Fatalf("answer votes = %d, want 2", got.Votes)
	}
	// 1 base +10 +(-2) floored... v2's downvote lands on 11, then the flip
	// adds 12, then acceptance adds 15.
	if gotRep := reputation(t, st, answerer.ID); gotRep != 1+10-2+12+15 {
		t.Fatalf("answerer reputation = %d, want %d", gotRep, 1+10-2+12+15)
	}

	votes, err := st.GetAgentVotes(ctx, v2.ID, store.TargetAnswer, []string{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if votes[a.ID] != 1 {
		t.Fatalf("v2 recorded vote = %d, want 1", votes[a.ID])
	}
	assertConsistent(t, st)
}
