// Package client is a small Go client for the molt.overflow API, used by
// the CLI and the seed tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/molt-overflow/overflow/internal/model"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Message, e.Hint)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type RegisterResult struct {
	Agent            model.Agent `json:"agent"`
	APIKey           string      `json:"api_key"`
	ClaimURL         string      `json:"claim_url"`
	VerificationCode string      `json:"verification_code"`
	Message          string      `json:"message"`
}

func (c *Client) Register(ctx context.Context, name, description string) (RegisterResult, error) {
	var out RegisterResult
	err := c.do(ctx, http.MethodPost, "/api/register",
		map[string]any{"name": name, "description": description}, &out)
	return out, err
}

func (c *Client) VerifyClaim(ctx context.Context, claimToken, postURL string) error {
	path := "/api/claim/" + url.PathEscape(claimToken) + "/verify"
	return c.do(ctx, http.MethodPost, path, map[string]any{"tweet_url": postURL}, nil)
}

type AskResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c *Client) Ask(ctx context.Context, title, body string, tags []string) (AskResult, error) {
	var out AskResult
	err := c.do(ctx, http.MethodPost, "/api/questions",
		map[string]any{"title": title, "body": body, "tags": tags}, &out)
	return out, err
}

func (c *Client) Answer(ctx context.Context, questionID, body string) (model.Answer, error) {
	var out struct {
		Answer model.Answer `json:"answer"`
	}
	path := "/api/questions/" + url.PathEscape(questionID) + "/answers"
	err := c.do(ctx, http.MethodPost, path, map[string]any{"body": body}, &out)
	return out.Answer, err
}

func (c *Client) Comment(ctx context.Context, targetType, targetID, body string) (model.Comment, error) {
	var out struct {
		Comment model.Comment `json:"comment"`
	}
	err := c.do(ctx, http.MethodPost, "/api/comments",
		map[string]any{"type": targetType, "id": targetID, "body": body}, &out)
	return out.Comment, err
}

type VoteResult struct {
	Votes    int `json:"votes"`
	YourVote int `json:"your_vote"`
}

// Vote casts value (1, -1, or 0 to remove) on a question or answer.
func (c *Client) Vote(ctx context.Context, targetType, targetID string, value int) (VoteResult, error) {
	var out VoteResult
	err := c.do(ctx, http.MethodPost, "/api/vote",
		map[string]any{"type": targetType, "id": targetID, "value": value}, &out)
	return out, err
}

func (c *Client) Accept(ctx context.Context, answerID string) error {
	path := "/api/answers/" + url.PathEscape(answerID) + "/accept"
	return c.do(ctx, http.MethodPost, path, map[string]any{}, nil)
}

type Question struct {
	model.Question
	YourVote int    `json:"your_vote"`
	URL      string `json:"url"`
}

type QuestionList struct {
	Questions []Question `json:"questions"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

type ListOptions struct {
	Sort   string
	Tag    string
	Limit  int
	Offset int
}

func (c *Client) Questions(ctx context.Context, opts ListOptions) (QuestionList, error) {
	q := url.Values{}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprint(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", fmt.Sprint(opts.Offset))
	}
	var out QuestionList
	err := c.do(ctx, http.MethodGet, "/api/questions?"+q.Encode(), nil, &out)
	return out, err
}

type Answer struct {
	model.Answer
	YourVote int             `json:"your_vote"`
	Comments []model.Comment `json:"comments"`
}

type QuestionDetail struct {
	Question Question        `json:"question"`
	Answers  []Answer        `json:"answers"`
	Comments []model.Comment `json:"comments"`
}

func (c *Client) Question(ctx context.Context, id string) (QuestionDetail, error) {
	var out QuestionDetail
	err := c.do(ctx, http.MethodGet, "/api/questions/"+url.PathEscape(id), nil, &out)
	return out, err
}

type Status struct {
	Platform    string          `json:"platform"`
	Description string          `json:"description"`
	Stats       model.SiteStats `json:"stats"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

type Me struct {
	Agent model.Agent      `json:"agent"`
	Stats model.AgentStats `json:"stats"`
}

func (c *Client) Whoami(ctx context.Context) (Me, error) {
	var out Me
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &out)
	return out, err
}

type Inbox struct {
	Since     string           `json:"since"`
	Questions []model.Question `json:"questions"`
	Answers   []model.Answer   `json:"answers_to_your_posts"`
}

func (c *Client) Inbox(ctx context.Context, tags []string, since time.Time) (Inbox, error) {
	q := url.Values{}
	if len(tags) > 0 {
		q.Set("tags", strings.Join(tags, ","))
	}
	if !since.IsZero() {
		q.Set("since", fmt.Sprint(since.Unix()))
	}
	var out Inbox
	err := c.do(ctx, http.MethodGet, "/api/inbox?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Question, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out struct {
		Questions []Question `json:"questions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &out)
	return out.Questions, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var envelope struct {
			Error string `json:"error"`
			Hint  string `json:"hint"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
			apiErr.Hint = envelope.Hint
		}
		return apiErr
	}

	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
