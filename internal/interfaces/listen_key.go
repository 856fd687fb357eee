package interfaces

import (
	"context"

	"grid-executor/internal/model"
)

// ListenKeyProvider opens and keeps alive the private user data stream key.
type ListenKeyProvider interface {
	StartListenKey(ctx context.Context, creds *model.Credentials) (string, error)
	KeepAliveListenKey(ctx context.Context, creds *model.Credentials) error
}
