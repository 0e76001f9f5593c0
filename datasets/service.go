package datasets

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

// Backend is the remote dataset API.
type Backend interface {
	ListUploads(ctx context.Context) ([]Record, error)
	GetUpload(ctx context.Context, id string) (Record, error)
	CreateUpload(ctx context.Context, u Upload) (Record, error)
	UpdateUpload(ctx context.Context, id string, p Patch) (Record, error)
	DeleteUpload(ctx context.Context, id string) error
	SetUploadStatus(ctx context.Context, id string, r Review) (Record, error)
	ListColumns(ctx context.Context, id string) ([]Column, error)
	AddColumn(ctx context.Context, id string, c Column) (Column, error)
}

// Service validates dataset operations and caches the dataset list until
// something changes it.
type Service struct {
	backend Backend

	mu     sync.Mutex
	cached []Record
	valid  bool
	// generation moves on every Invalidate. A fetch started under an older
	// generation must not fill the cache.
	generation uint64
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// List returns all datasets, from cache when possible.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	if s.valid {
		out := append([]Record(nil), s.cached...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh re-fetches the dataset list.
func (s *Service) Refresh(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	records, err := s.backend.ListUploads(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "list datasets")
	}

	s.mu.Lock()
	stale := gen != s.generation
	if !stale {
		s.cached = append([]Record(nil), records...)
		s.valid = true
	}
	s.mu.Unlock()

	log.Debug().Int("count", len(records)).Bool("stale", stale).Msg("dataset list refreshed")
	return records, nil
}

// Invalidate drops the cached list. Called on every mutation and whenever
// the session changes hands.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.valid = false
	s.generation++
	s.mu.Unlock()
}

// Find returns the filtered, ordered list.
func (s *Service) Find(ctx context.Context, q Query) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(records), nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if err := requireID(id); err != nil {
		return Record{}, err
	}
	r, err := s.backend.GetUpload(ctx, id)
	if err != nil {
		return Record{}, errors.Wrapf(err, "get dataset %s", id)
	}
	return r, nil
}

// Upload validates and submits a new dataset.
func (s *Service) Upload(ctx context.Context, u Upload) (Record, error) {
	if err := u.Validate(); err != nil {
		return Record{}, err
	}
	u.TableName = strings.TrimSpace(u.TableName)
	u.DataDescription = strings.TrimSpace(u.DataDescription)

	r, err := s.backend.CreateUpload(ctx, u)
	if err != nil {
		return Record{}, errors.Wrapf(err, "upload dataset %s", u.TableName)
	}
	s.Invalidate()
	log.Info().Str("table", u.TableName).Str("file", u.FileName).Msg("dataset uploaded")
	return r, nil
}

func (s *Service) Update(ctx context.Context, id string, p Patch) (Record, error) {
	if err := requireID(id); err != nil {
		return Record{}, err
	}
	if err := p.Validate(); err != nil {
		return Record{}, err
	}
	r, err := s.backend.UpdateUpload(ctx, id, p)
	if err != nil {
		return Record{}, errors.Wrapf(err, "update dataset %s", id)
	}
	s.Invalidate()
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := s.backend.DeleteUpload(ctx, id); err != nil {
		return errors.Wrapf(err, "delete dataset %s", id)
	}
	s.Invalidate()
	log.Info().Str("id", id).Msg("dataset deleted")
	return nil
}

// SetStatus records a review decision.
func (s *Service) SetStatus(ctx context.Context, id string, r Review) (Record, error) {
	if err := requireID(id); err != nil {
		return Record{}, err
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	rec, err := s.backend.SetUploadStatus(ctx, id, r)
	if err != nil {
		return Record{}, errors.Wrapf(err, "set dataset %s status", id)
	}
	s.Invalidate()
	log.Info().Str("id", id).Str("status", string(r.Status)).Msg("dataset reviewed")
	return rec, nil
}

func (s *Service) Columns(ctx context.Context, id string) ([]Column, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	cols, err := s.backend.ListColumns(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list dataset %s columns", id)
	}
	return cols, nil
}

func (s *Service) AddColumn(ctx context.Context, id string, c Column) (Column, error) {
	if err := requireID(id); err != nil {
		return Column{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return Column{}, errors.Wrapf(errors.ErrValidation, "column name is required")
	}
	out, err := s.backend.AddColumn(ctx, id, c)
	if err != nil {
		return Column{}, errors.Wrapf(err, "add column to dataset %s", id)
	}
	return out, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrapf(errors.ErrValidation, "dataset id is required")
	}
	return nil
}
