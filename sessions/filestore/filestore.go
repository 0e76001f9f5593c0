package filestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/sessions"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var _ sessions.Repo = (*FileRepo)(nil)

const (
	envelopeVersion = 1
	saltLength      = 16
	nonceLength     = 24
	keyLength       = 32

	// argon2id parameters for deriving the session file key
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// envelope is the on-disk format of an encrypted session file.
type envelope struct {
	Version int    `json:"version"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

// FileRepo persists session keys as a single JSON document. Every write
// replaces the file with a rename so readers see either the old or the new
// record, never a mix.
type FileRepo struct {
	path       string
	passphrase []byte

	mu        sync.Mutex
	salt      []byte
	cachedKey *[keyLength]byte
	randomize io.Reader
}

type Option func(*FileRepo)

// WithPassphrase encrypts the session file with a key derived from passphrase.
func WithPassphrase(passphrase string) Option {
	return func(r *FileRepo) {
		if passphrase != "" {
			r.passphrase = []byte(passphrase)
		}
	}
}

// New creates a repo backed by path, creating its directory with owner-only permissions.
func New(path string, opts ...Option) (*FileRepo, error) {
	if path == "" {
		return nil, errors.Wrapf(errors.ErrValidation, "session file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	r := &FileRepo{
		path:      path,
		randomize: rand.Reader,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Path returns the session file location.
func (r *FileRepo) Path() string {
	return r.path
}

// Encrypted reports whether writes are encrypted.
func (r *FileRepo) Encrypted() bool {
	return len(r.passphrase) > 0
}

func (r *FileRepo) Load() (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepo) SetMany(values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load()
	if err != nil {
		// An unreadable record is replaced rather than merged.
		current = make(map[string]string)
	}
	for k, v := range values {
		current[k] = v
	}
	return r.write(current)
}

func (r *FileRepo) Delete(keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load()
	if err != nil {
		current = make(map[string]string)
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return r.write(current)
}

func (r *FileRepo) load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Version == envelopeVersion && len(env.Box) > 0 {
		data, err = r.open(env)
		if err != nil {
			return nil, err
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSession, "%s", r.path)
	}
	return values, nil
}

func (r *FileRepo) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if r.Encrypted() {
		if data, err = r.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		cleanup()
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (r *FileRepo) seal(plain []byte) ([]byte, error) {
	// The salt is reused across writes so the key is derived once per
	// process; each write still gets a fresh nonce.
	salt := r.salt
	if len(salt) != saltLength {
		salt = make([]byte, saltLength)
		if _, err := io.ReadFull(r.randomize, salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(r.randomize, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	box := secretbox.Seal(nil, plain, &nonce, r.key(salt))
	return json.Marshal(envelope{
		Version: envelopeVersion,
		Salt:    salt,
		Nonce:   nonce[:],
		Box:     box,
	})
}

func (r *FileRepo) open(env envelope) ([]byte, error) {
	if !r.Encrypted() {
		return nil, errors.Wrapf(errors.ErrDecrypt, "session file is encrypted but no passphrase is configured")
	}
	if len(env.Nonce) != nonceLength || len(env.Salt) != saltLength {
		return nil, errors.Wrapf(errors.ErrCorruptSession, "%s: bad envelope", r.path)
	}

	var nonce [nonceLength]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Box, &nonce, r.key(env.Salt))
	if !ok {
		return nil, errors.Wrapf(errors.ErrDecrypt, "%s", r.path)
	}
	return plain, nil
}

// key derives the secretbox key for salt, caching the most recent derivation.
func (r *FileRepo) key(salt []byte) *[keyLength]byte {
	if r.cachedKey != nil && bytes.Equal(r.salt, salt) {
		return r.cachedKey
	}
	var k [keyLength]byte
	copy(k[:], argon2.IDKey(r.passphrase, salt, argonTime, argonMemory, argonThreads, keyLength))
	r.salt = append([]byte(nil), salt...)
	r.cachedKey = &k
	return &k
}
