package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads keys from each service's documented variable. It
// is read-only.
type EnvironmentStore struct {
	getenv func(string) string
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

func (e *EnvironmentStore) Store(*Credential) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Retrieve(s Service) (*Credential, error) {
	name := s.EnvVar()
	if name == "" {
		return nil, ErrCredentialsNotFound
	}
	key := e.getenv(name)
	if key == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{Service: s, APIKey: key, LastModified: time.Time{}}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	out := []*Credential{}
	for _, s := range Services() {
		if c, err := e.Retrieve(s); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (e *EnvironmentStore) Delete(Service) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Exists(s Service) bool {
	_, err := e.Retrieve(s)
	return err == nil
}
