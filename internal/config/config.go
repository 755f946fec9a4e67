package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr       string
	DBPath     string
	BaseURL    string
	RateLimits RateLimits
}

type RateLimits struct {
	AskPerMinute     int
	AnswerPerMinute  int
	CommentPerMinute int
	VotePerMinute    int
}

func Load() Config {
	addr := envString("OVERFLOW_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Config{
		Addr:    addr,
		DBPath:  envString("OVERFLOW_DB", "overflow.db"),
		BaseURL: envString("OVERFLOW_BASE_URL", "http://localhost:8080"),
		RateLimits: RateLimits{
			AskPerMinute:     envInt("OVERFLOW_RL_ASK_PER_MIN", 10),
			AnswerPerMinute:  envInt("OVERFLOW_RL_ANSWER_PER_MIN", 30),
			CommentPerMinute: envInt("OVERFLOW_RL_COMMENT_PER_MIN", 30),
			VotePerMinute:    envInt("OVERFLOW_RL_VOTE_PER_MIN", 120),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
