package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "authctl"
)

// KeyringBackend persists session fields securely in the OS keychain/credential manager
type KeyringBackend struct {
	namespace string
}

// NewKeyringBackend creates a keyring backend whose keys are scoped to namespace (usually the server URL)
func NewKeyringBackend(namespace string) *KeyringBackend {
	return &KeyringBackend{namespace: namespace}
}

// Get retrieves a session field from the OS keychain/credential manager
func (k *KeyringBackend) Get(_ context.Context, key string) (string, bool, error) {
	value, err := keyring.Get(keyringService, namespacedKey(k.namespace, key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return value, true, nil
}

// Set saves a session field in the OS keychain/credential manager
func (k *KeyringBackend) Set(_ context.Context, key, value string) error {
	if err := keyring.Set(keyringService, namespacedKey(k.namespace, key), value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

// Delete removes a session field from the OS keychain/credential manager
func (k *KeyringBackend) Delete(_ context.Context, key string) error {
	if err := keyring.Delete(keyringService, namespacedKey(k.namespace, key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}
