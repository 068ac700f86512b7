package auth

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const jarVersion = 2

// Argon2id cost. Stored in each jar so older jars keep opening if it changes.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// ErrJarLocked is returned when an entry does not open with the current
// passphrase, or was moved to another name.
var ErrJarLocked = errors.New("cookie jar entry cannot be opened")

// CookieJar is a file-backed CredentialStore. Each account is kept as its
// Cookie header sealed with XChaCha20-Poly1305 under an Argon2id key, with
// the account name as associated data.
//
// bilibili issues a new SESSDATA and bili_jct on every login, so storing an
// account replaces any entry holding the same DedeUserID under another name.
type CookieJar struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	aead cipher.AEAD
}

type jarFile struct {
	Version int                 `json:"version"`
	KDF     jarKDF              `json:"kdf"`
	Entries map[string]jarEntry `json:"entries"`
}

type jarKDF struct {
	Salt    []byte `json:"salt,omitempty"`
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory_kib"`
	Threads uint8  `json:"threads"`
}

// jarEntry keeps the user id in the clear so rotated logins are found
// without opening every entry.
type jarEntry struct {
	UserID    string    `json:"uid,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Nonce     []byte    `json:"nonce"`
	Sealed    []byte    `json:"sealed"`
	Updated   time.Time `json:"updated"`
}

// NewCookieJar opens the jar at path. The passphrase comes from
// OPUSDL_PASSPHRASE, else from a random key file at path + ".key" that is
// created on first use.
func NewCookieJar(path string) (*CookieJar, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := jarPassphrase(path + ".key")
	if err != nil {
		return nil, err
	}
	return &CookieJar{path: path, passphrase: passphrase}, nil
}

func jarPassphrase(keyFile string) ([]byte, error) {
	if pass := os.Getenv("OPUSDL_PASSPHRASE"); pass != "" {
		return []byte(pass), nil
	}

	if content, err := os.ReadFile(keyFile); err == nil {
		if key := bytes.TrimSpace(content); len(key) > 0 {
			return key, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	key := []byte(hex.EncodeToString(raw))
	if err := os.WriteFile(keyFile, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to save key file: %w", err)
	}
	return key, nil
}

// Store seals the account's cookies, replacing older logins of the same user
func (j *CookieJar) Store(account *Account) error {
	if account == nil || account.Name == "" || account.SessData == "" {
		return ErrInvalidCredentials
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := j.read()
	if err != nil {
		return err
	}
	aead, err := j.aeadFor(&jar.KDF)
	if err != nil {
		return err
	}

	if account.DedeUserID != "" {
		for name, entry := range jar.Entries {
			if name != account.Name && entry.UserID == account.DedeUserID {
				delete(jar.Entries, name)
			}
		}
	}

	entry, err := seal(aead, account)
	if err != nil {
		return err
	}
	jar.Entries[account.Name] = entry
	return j.write(jar)
}

// Retrieve opens the entry stored under name
func (j *CookieJar) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := j.read()
	if err != nil {
		return nil, err
	}
	entry, ok := jar.Entries[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	aead, err := j.aeadFor(&jar.KDF)
	if err != nil {
		return nil, err
	}
	return open(aead, name, entry)
}

// List opens every entry, ordered by name
func (j *CookieJar) List() ([]*Account, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := j.read()
	if err != nil {
		return nil, err
	}
	if len(jar.Entries) == 0 {
		return []*Account{}, nil
	}
	aead, err := j.aeadFor(&jar.KDF)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(jar.Entries))
	for name := range jar.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := open(aead, name, jar.Entries[name])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete drops the entry. The jar file goes away with its last entry.
func (j *CookieJar) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := j.read()
	if err != nil {
		return err
	}
	if _, ok := jar.Entries[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(jar.Entries, name)

	if len(jar.Entries) == 0 {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return j.write(jar)
}

// Exists reports whether an entry is stored under name, without opening it
func (j *CookieJar) Exists(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := j.read()
	if err != nil {
		return false
	}
	_, ok := jar.Entries[name]
	return ok
}

func (j *CookieJar) read() (*jarFile, error) {
	content, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return &jarFile{
			Version: jarVersion,
			KDF:     jarKDF{Time: kdfTime, Memory: kdfMemory, Threads: kdfThreads},
			Entries: map[string]jarEntry{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}

	var jar jarFile
	if err := json.Unmarshal(content, &jar); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar: %w", err)
	}
	if jar.Version != jarVersion {
		return nil, fmt.Errorf("unsupported cookie jar version %d", jar.Version)
	}
	if jar.Entries == nil {
		jar.Entries = map[string]jarEntry{}
	}
	return &jar, nil
}

func (j *CookieJar) write(jar *jarFile) error {
	content, err := json.MarshalIndent(jar, "", "  ")
	if err != nil {
		return err
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write cookie jar: %w", err)
	}
	return os.Rename(tmp, j.path)
}

// aeadFor derives the key for kdf, drawing a salt first for a new jar. The
// last derived key is cached.
func (j *CookieJar) aeadFor(kdf *jarKDF) (cipher.AEAD, error) {
	if len(kdf.Salt) == 0 {
		kdf.Salt = make([]byte, 16)
		if _, err := rand.Read(kdf.Salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	if j.aead != nil && bytes.Equal(j.salt, kdf.Salt) {
		return j.aead, nil
	}

	key := argon2.IDKey(j.passphrase, kdf.Salt, kdf.Time, kdf.Memory, kdf.Threads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	j.salt, j.aead = kdf.Salt, aead
	return aead, nil
}

func seal(aead cipher.AEAD, account *Account) (jarEntry, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return jarEntry{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	updated := account.LastModified
	if updated.IsZero() {
		updated = time.Now()
	}
	return jarEntry{
		UserID:    account.DedeUserID,
		UserAgent: account.UserAgent,
		Nonce:     nonce,
		Sealed:    aead.Seal(nil, nonce, []byte(account.cookieHeader()), []byte(account.Name)),
		Updated:   updated,
	}, nil
}

func open(aead cipher.AEAD, name string, entry jarEntry) (*Account, error) {
	if len(entry.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: %s", ErrJarLocked, name)
	}
	plain, err := aead.Open(nil, entry.Nonce, entry.Sealed, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJarLocked, name)
	}

	account, err := ParseCookieHeader(string(plain))
	if err != nil {
		return nil, err
	}
	if account.DedeUserID != entry.UserID {
		return nil, fmt.Errorf("%w: %s", ErrJarLocked, name)
	}
	account.Name = name
	account.UserAgent = entry.UserAgent
	account.LastModified = entry.Updated
	return account, nil
}
