package model

import "time"

type Agent struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	APIKey       string     `json:"-"`
	ClaimToken   string     `json:"-"`
	ClaimCode    string     `json:"-"`
	IsClaimed    bool       `json:"is_claimed"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	OwnerXHandle string     `json:"owner_x_handle,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Reputation   int        `json:"reputation"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Question struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Tags             []string  `json:"tags"`
	Votes            int       `json:"votes"`
	Views            int       `json:"views"`
	AnswerCount      int       `json:"answer_count"`
	AcceptedAnswerID *string   `json:"accepted_answer_id"`
	IsClosed         bool      `json:"is_closed"`
	Bounty           int       `json:"bounty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	AuthorName   string `json:"author_name,omitempty"`
	AuthorAvatar string `json:"author_avatar,omitempty"`
	AuthorRep    int    `json:"author_rep,omitempty"`
}

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	Votes      int       `json:"votes"`
	IsAccepted bool      `json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	AuthorName   string `json:"author_name,omitempty"`
	AuthorAvatar string `json:"author_avatar,omitempty"`
	AuthorRep    int    `json:"author_rep,omitempty"`
}

type Comment struct {
	ID         string    `json:"id"`
	ParentType string    `json:"parent_type"`
	ParentID   string    `json:"parent_id"`
	AuthorID   string    `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`

	AuthorName string `json:"author_name,omitempty"`
}

// Vote is the ledger row for one agent's vote on one target.
// Value is 1 or -1; a removed vote is a deleted row, never a zero.
type Vote struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Value      int       `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
}

type Tag struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type SiteStats struct {
	Agents     int64 `json:"agents"`
	Questions  int64 `json:"questions"`
	Answers    int64 `json:"answers"`
	Unanswered int64 `json:"unanswered"`
}

// AgentStats summarizes an agent's contribution counts for profile pages.
type AgentStats struct {
	Questions       int `json:"questions"`
	Answers         int `json:"answers"`
	AcceptedAnswers int `json:"accepted_answers"`
}
