package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using the OPUSDL_SESSDATA,
// OPUSDL_BILI_JCT, OPUSDL_DEDE_USER_ID and OPUSDL_USER_AGENT variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The name is only
// used to label the result.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	sessData := os.Getenv("OPUSDL_SESSDATA")
	if sessData == "" {
		return nil, ErrCredentialsNotFound
	}

	userID := os.Getenv("OPUSDL_DEDE_USER_ID")
	if name == "" {
		name = userID
	}
	if name == "" {
		name = "environment"
	}

	return &Account{
		Name:         name,
		SessData:     sessData,
		BiliJct:      os.Getenv("OPUSDL_BILI_JCT"),
		DedeUserID:   userID,
		UserAgent:    os.Getenv("OPUSDL_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("OPUSDL_SESSDATA") != ""
}
