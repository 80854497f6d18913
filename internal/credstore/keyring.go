package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name values are filed under.
const DefaultService = "ledger"

// KeyringStore keeps values in the operating system keychain.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a store filing values under service.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get %s/%s: %w", s.service, key, err)
	}
	return v, true, nil
}

func (s *KeyringStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s/%s: %w", s.service, key, err)
	}
	return nil
}

func (s *KeyringStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := keyring.Delete(s.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s/%s: %w", s.service, key, err)
	}
	return nil
}
