package tokenstore

import (
	"context"
	"errors"
)

var ErrNoToken = errors.New("no stored refresh token")

// Store keeps the latest refresh token. The token endpoint may rotate the
// refresh token on every grant, so the rotated value must be saved before
// the next run.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, refreshToken string) error
}
