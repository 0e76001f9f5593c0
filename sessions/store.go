package sessions

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/internal/utils"
	"github.com/rs/zerolog/log"
)

// EventKind identifies what changed in the store.
type EventKind int

const (
	EventSaved    EventKind = iota + 1 // login stored a new session
	EventUpdated                       // tokens refreshed in place
	EventCleared                       // logout, forced logout or idle timeout
	EventReloaded                      // backing record changed outside this process
)

func (k EventKind) String() string {
	switch k {
	case EventSaved:
		return "saved"
	case EventUpdated:
		return "updated"
	case EventCleared:
		return "cleared"
	case EventReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the store changes. Session is a copy.
type Event struct {
	Kind    EventKind
	Session Session
}

// Listener observes store changes. Listeners run synchronously on the
// goroutine that made the change, after the store's locks are released.
type Listener func(Event)

// Store is the single source of truth for the profile's Session. It keeps the
// current value in memory and writes every change through to the Repo.
type Store struct {
	repo Repo

	mu      sync.RWMutex
	current Session

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore creates a store and loads the persisted session.
func NewStore(repo Repo) *Store {
	s := &Store{
		repo:      repo,
		listeners: make(map[int]Listener),
	}
	s.current = s.read()
	return s
}

// Load re-reads the persisted session, replacing the in-memory copy.
// Missing or unreadable values load as empty; Load never fails.
func (s *Store) Load() Session {
	sess := s.read()
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess.clone()
}

// Reload re-reads the backing record and notifies listeners when it differs
// from the in-memory session.
func (s *Store) Reload() {
	sess := s.read()

	s.mu.Lock()
	changed := !sameSession(s.current, sess)
	s.current = sess
	s.mu.Unlock()

	if changed {
		log.Debug().Bool("active", sess.Active()).Msg("session reloaded from storage")
		s.notify(EventReloaded, sess)
	}
}

func (s *Store) read() Session {
	values, err := s.repo.Load()
	if err != nil {
		log.Warn().Err(err).Msg("unable to load session, starting logged out")
		return Session{}
	}

	sess := Session{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
	}
	if raw := values[KeyUser]; raw != "" {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			log.Warn().Err(err).Msg("stored user is not valid json, ignoring it")
		} else {
			sess.User = &u
		}
	}
	return sess
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken
}

func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.current.User)
}

// Active reports whether a logged in session exists.
func (s *Store) Active() bool {
	return s.AccessToken() != ""
}

// Save persists a new session, replacing any previous one.
func (s *Store) Save(sess Session) error {
	if sess.AccessToken == "" {
		return errors.Wrapf(errors.ErrValidation, "save session: access token is required")
	}

	userJSON := ""
	if sess.User != nil {
		b, err := json.Marshal(sess.User)
		if err != nil {
			return errors.Wrapf(err, "save session: encode user")
		}
		userJSON = string(b)
	}

	s.mu.Lock()
	err := s.repo.SetMany(map[string]string{
		KeyAccessToken:  sess.AccessToken,
		KeyRefreshToken: sess.RefreshToken,
		KeyUser:         userJSON,
	})
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "save session")
	}
	s.current = sess.clone()
	s.mu.Unlock()

	s.notify(EventSaved, sess)
	return nil
}

// Clear removes the session. The in-memory session is cleared even when the
// backing store fails so a forced logout always takes effect in-process.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = Session{}
	err := s.repo.Delete(AllKeys...)
	s.mu.Unlock()

	s.notify(EventCleared, Session{})
	if err != nil {
		return errors.Wrapf(err, "clear session")
	}
	return nil
}

// Update merges the present fields of u into the session, leaving the other
// token and the user untouched. A logged out store stays logged out: Update
// then returns ErrNotAuthenticated and writes nothing.
func (s *Store) Update(u TokenUpdate) error {
	if u.empty() {
		return nil
	}

	values := make(map[string]string, 2)
	if v := utils.Value(u.AccessToken); v != "" {
		values[KeyAccessToken] = v
	}
	if v := utils.Value(u.RefreshToken); v != "" {
		values[KeyRefreshToken] = v
	}

	s.mu.Lock()
	if s.current.AccessToken == "" {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrNotAuthenticated, "update session tokens")
	}
	if err := s.repo.SetMany(values); err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "update session tokens")
	}
	if v, ok := values[KeyAccessToken]; ok {
		s.current.AccessToken = v
	}
	if v, ok := values[KeyRefreshToken]; ok {
		s.current.RefreshToken = v
	}
	sess := s.current.clone()
	s.mu.Unlock()

	s.notify(EventUpdated, sess)
	return nil
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(kind EventKind, sess Session) {
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(Event{Kind: kind, Session: sess.clone()})
	}
}

func sameSession(a, b Session) bool {
	if a.AccessToken != b.AccessToken || a.RefreshToken != b.RefreshToken {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	if a.User == nil {
		return true
	}
	return a.User.ID == b.User.ID && a.User.Email == b.User.Email && a.User.Role == b.User.Role
}
