package auth

import "context"

// LoginTestChecker accepts a fixed set of tokens. Used when redis is not
// available (dev runs, tests).
type LoginTestChecker struct {
	LoggedSessions map[string]bool
}

func NewLoginTestChecker(tokens ...string) *LoginTestChecker {
	c := &LoginTestChecker{
		LoggedSessions: map[string]bool{},
	}
	for _, t := range tokens {
		c.LoggedSessions[t] = true
	}
	return c
}

func (c *LoginTestChecker) IsLogged(_ context.Context, token string) (bool, error) {
	return c.LoggedSessions[token], nil
}
