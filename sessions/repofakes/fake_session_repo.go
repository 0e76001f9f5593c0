package fakesessionrepo

import (
	"errors"
	"sync"

	"github.com/jrsteele09/bimi-admin/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps session keys in memory. Errors can be injected to
// exercise failure paths.
type FakeSessionRepo struct {
	values map[string]string
	lock   sync.RWMutex

	LoadErr   error
	SetErr    error
	DeleteErr error
	Writes    int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		values: make(map[string]string),
	}
}

// NewFakeSessionRepoWith seeds the repo, as if a previous run had persisted values.
func NewFakeSessionRepoWith(values map[string]string) *FakeSessionRepo {
	r := NewFakeSessionRepo()
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

func (sr *FakeSessionRepo) Load() (map[string]string, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	if sr.LoadErr != nil {
		return nil, sr.LoadErr
	}

	out := make(map[string]string, len(sr.values))
	for k, v := range sr.values {
		out[k] = v
	}
	return out, nil
}

func (sr *FakeSessionRepo) SetMany(values map[string]string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.SetErr != nil {
		return sr.SetErr
	}

	for k, v := range values {
		sr.values[k] = v
	}
	sr.Writes++
	return nil
}

func (sr *FakeSessionRepo) Delete(keys ...string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.DeleteErr != nil {
		return sr.DeleteErr
	}

	for _, k := range keys {
		delete(sr.values, k)
	}
	return nil
}

// Get returns a single stored value for assertions.
func (sr *FakeSessionRepo) Get(key string) (string, bool) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	v, ok := sr.values[key]
	return v, ok
}

var ErrInjected = errors.New("injected failure")
