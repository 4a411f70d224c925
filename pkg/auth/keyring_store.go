package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "enricher"

// KeyringStore keeps keys in the system keychain, one entry per service.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unusable.
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(c *Credential) error {
	if c == nil || c.Service == "" || c.APIKey == "" {
		return ErrInvalidCredentials
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, string(c.Service), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(s Service) (*Credential, error) {
	data, err := keyring.Get(keyringService, string(s))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var c Credential
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &c, nil
}

// List probes each known service; the keychain cannot enumerate entries.
func (k *KeyringStore) List() ([]*Credential, error) {
	out := []*Credential{}
	for _, s := range Services() {
		if c, err := k.Retrieve(s); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (k *KeyringStore) Delete(s Service) error {
	if err := keyring.Delete(keyringService, string(s)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Exists(s Service) bool {
	_, err := keyring.Get(keyringService, string(s))
	return err == nil
}
