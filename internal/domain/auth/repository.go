package auth

import "context"

// Repository provides access to the authorized-actor table in the remote
// store. Implementations return the full id column on every call; caching
// is the Cache's job.
type Repository interface {
	ListAuthorizedIDs(ctx context.Context) ([]string, error)
}
