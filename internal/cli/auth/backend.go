package auth

import (
	"context"
	"fmt"
)

// Keys persisted by every backend
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserID       = "user_id"
)

var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserID}

// Backend defines the interface for a key/value store holding session fields.
// This allows the durable and ephemeral tiers to be swapped out (and mocked in tests).
type Backend interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// namespacedKey returns a unique key for storing a session field per server
func namespacedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return fmt.Sprintf("%s/%s", namespace, key)
}
