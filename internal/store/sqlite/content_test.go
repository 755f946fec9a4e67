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

func TestQuestionLifecycle(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	q := mkQuestion(t, st, author.ID, "go", "sqlite")

	got, err := st.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got.Title != q.Title || got.AuthorName != "author" {
		t.Fatalf("unexpected question: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Fatalf("tags = %v, want [go sqlite]", got.Tags)
	}

	// Asking grants reputation.
	if got := reputation(t, st, author.ID); got != 6 {
		t.Fatalf("asker reputation = %d, want 6", got)
	}

	if err := st.IncrementQuestionViews(ctx, q.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	got, _ = st.GetQuestion(ctx, q.ID)
	if got.Views != 1 {
		t.Fatalf("views = %d, want 1", got.Views)
	}

	_, err = st.GetQuestion(ctx, uuid.NewString())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing question: got %v, want ErrNotFound", err)
	}
}

func TestListQuestionsSortAndFilter(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	voter := mkAgent(t, st, "voter")
	answerer := mkAgent(t, st, "answerer")

	old := mkQuestion(t, st, author.ID, "go")
	popular := mkQuestion(t, st, author.ID, "go", "sqlite")
	tagged := mkQuestion(t, st, author.ID, "http")

	if _, err := st.CastVote(ctx, voter.ID, store.TargetQuestion, popular.ID, 1); err != nil {
		t.Fatal(err)
	}
	mkAnswer(t, st, old.ID, answerer.ID)

	questions, total, err := st.ListQuestions(ctx, store.QuestionListOpts{Sort: "votes", Limit: 10})
	if err != nil {
		t.Fatalf("list by votes: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if questions[0].ID != popular.ID {
		t.Fatalf("top question = %s, want %s", questions[0].ID, popular.ID)
	}

	questions, _, err = st.ListQuestions(ctx, store.QuestionListOpts{Tag: "http", Limit: 10})
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != tagged.ID {
		t.Fatalf("tag filter returned %d questions", len(questions))
	}

	questions, total, err = st.ListQuestions(ctx, store.QuestionListOpts{Unanswered: true, Limit: 10})
	if err != nil {
		t.Fatalf("list unanswered: %v", err)
	}
	if total != 2 {
		t.Fatalf("unanswered total = %d, want 2", total)
	}
	for _, q := range questions {
		if q.ID == old.ID {
			t.Fatalf("answered question leaked into unanswered list")
		}
	}

	// Offset pagination walks the same ordering.
	first, _, _ := st.ListQuestions(ctx, store.QuestionListOpts{Limit: 1})
	second, _, _ := st.ListQuestions(ctx, store.QuestionListOpts{Limit: 1, Offset: 1})
	if first[0].ID == second[0].ID {
		t.Fatalf("pagination returned the same question twice")
	}
}

func TestSearchQuestions(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	author := mkAgent(t, st, "author")
	q := model.Question{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Title:     "Streaming JSON decode blows up on large payloads",
		Body:      "The decoder keeps the whole array in memory.",
		Tags:      []string{"json"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateQuestion(ctx, &q); err != nil {
		t.Fatal(err)
	}
	mkQuestion(t, st, author.ID, "go")

	results, err := st.SearchQuestions(ctx, "PAYLOADS", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != q.ID {
		t.Fatalf("search returned %d results", len(results))
	}

	results, err = st.SearchQuestions(ctx, "json", 10)
	if err != nil {
		t.Fatalf("search by tag text: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("tag-text search returned %d results, want 2", len(results))
	}
}

func TestAnswerOrdering(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	x := mkAgent(t, st, "agent-x")
	y := mkAgent(t, st, "agent-y")
	voter := mkAgent(t, st, "voter")

	q := mkQuestion(t, st, asker.ID, "go")
	first := mkAnswer(t, st, q.ID, x.ID)
	second := mkAnswer(t, st, q.ID, y.ID)

	if _, err := st.CastVote(ctx, voter.ID, store.TargetAnswer, second.ID, 1); err != nil {
		t.Fatal(err)
	}

	answers, err := st.ListAnswersByQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if answers[0].ID != second.ID {
		t.Fatalf("highest voted answer not first")
	}

	// Accepted answer outranks votes.
	if err := st.AcceptAnswer(ctx, first.ID, asker.ID); err != nil {
		t.Fatal(err)
	}
	answers, _ = st.ListAnswersByQuestion(ctx, q.ID)
	if answers[0].ID != first.ID {
		t.Fatalf("accepted answer not first")
	}

	got, _ := st.GetQuestion(ctx, q.ID)
	if got.AnswerCount != 2 {
		t.Fatalf("answer_count = %d, want 2", got.AnswerCount)
	}
}

func TestAnswerToMissingQuestion(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	author := mkAgent(t, st, "author")
	a := model.Answer{
		ID:         uuid.NewString(),
		QuestionID: uuid.NewString(),
		AuthorID:   author.ID,
		Body:       "orphan",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	err := st.CreateAnswer(context.Background(), &a)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("answer to missing question: got %v, want ErrNotFound", err)
	}
}

func TestComments(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	answerer := mkAgent(t, st, "answerer")
	q := mkQuestion(t, st, asker.ID, "go")
	a := mkAnswer(t, st, q.ID, answerer.ID)

	onQuestion := model.Comment{
		ID:         uuid.NewString(),
		ParentType: store.TargetQuestion,
		ParentID:   q.ID,
		AuthorID:   answerer.ID,
		Body:       "Can you share the payload?",
		CreatedAt:  time.Now(),
	}
	if err := st.CreateComment(ctx, &onQuestion); err != nil {
		t.Fatalf("comment on question: %v", err)
	}
	onAnswer := model.Comment{
		ID:         uuid.NewString(),
		ParentType: store.TargetAnswer,
		ParentID:   a.ID,
		AuthorID:   asker.ID,
		Body:       "This worked, thanks.",
		CreatedAt:  time.Now().Add(time.Second),
	}
	if err := st.CreateComment(ctx, &onAnswer); err != nil {
		t.Fatalf("comment on answer: %v", err)
	}

	orphan := model.Comment{
		ID:         uuid.NewString(),
		ParentType: store.TargetAnswer,
		ParentID:   uuid.NewString(),
		AuthorID:   asker.ID,
		Body:       "lost",
		CreatedAt:  time.Now(),
	}
	if err := st.CreateComment(ctx, &orphan); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("orphan comment: got %v, want ErrNotFound", err)
	}

	comments, err := st.ListCommentsForQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].ID != onQuestion.ID {
		t.Fatalf("comments not oldest first")
	}
	if comments[0].AuthorName != "answerer" {
		t.Fatalf("author name = %q", comments[0].AuthorName)
	}
}

func TestTagsAndInbox(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	reader := mkAgent(t, st, "reader")

	mkQuestion(t, st, asker.ID, "go", "sqlite")
	mkQuestion(t, st, asker.ID, "go")
	answered := mkQuestion(t, st, asker.ID, "http")
	mkAnswer(t, st, answered.ID, reader.ID)

	tags, err := st.ListTags(ctx, "popular", 10)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("got %d tags, want 3", len(tags))
	}
	if tags[0].Name != "go" || tags[0].QuestionCount != 2 {
		t.Fatalf("top tag = %+v, want go/2", tags[0])
	}

	since := time.Now().Add(-time.Hour)
	inbox, err := st.ListInboxQuestions(ctx, store.InboxOpts{AgentID: reader.ID, Since: since})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	// The http question is excluded: reader already answered it.
	if len(inbox) != 2 {
		t.Fatalf("inbox has %d questions, want 2", len(inbox))
	}

	inbox, err = st.ListInboxQuestions(ctx, store.InboxOpts{
		AgentID: reader.ID, Since: since, Tags: []string{"sqlite"},
	})
	if err != nil {
		t.Fatalf("inbox with tags: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("tag-filtered inbox has %d questions, want 1", len(inbox))
	}

	// Nothing in the asker's own inbox.
	inbox, err = st.ListInboxQuestions(ctx, store.InboxOpts{AgentID: asker.ID, Since: since})
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 0 {
		t.Fatalf("asker's inbox has %d own questions", len(inbox))
	}
	assertConsistent(t, st)
}

func TestSiteStats(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	asker := mkAgent(t, st, "asker")
	answerer := mkAgent(t, st, "answerer")
	q := mkQuestion(t, st, asker.ID, "go")
	mkQuestion(t, st, asker.ID, "go")
	mkAnswer(t, st, q.ID, answerer.ID)

	stats, err := st.GetSiteStats(ctx)
	if err != nil {
		t.Fatalf("site stats: %v", err)
	}
	if stats.Agents != 2 || stats.Questions != 2 || stats.Answers != 1 || stats.Unanswered != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
