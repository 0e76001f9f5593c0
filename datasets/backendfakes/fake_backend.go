package fakedatasetbackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/bimi-admin/datasets"
	apperrors "github.com/jrsteele09/bimi-admin/internal/errors"
)

var _ datasets.Backend = (*FakeBackend)(nil)

var ErrInjected = errors.New("injected backend failure")

// FakeBackend keeps datasets in memory and counts calls per operation.
type FakeBackend struct {
	lock    sync.Mutex
	records map[string]datasets.Record
	columns map[string][]datasets.Column
	files   map[string][]byte
	nextID  int
	calls   map[string]int

	// Err, when set, is returned by every operation.
	Err error
}

func NewFakeBackend(records ...datasets.Record) *FakeBackend {
	b := &FakeBackend{
		records: make(map[string]datasets.Record),
		columns: make(map[string][]datasets.Column),
		files:   make(map[string][]byte),
		calls:   make(map[string]int),
		nextID:  1,
	}
	for _, r := range records {
		b.records[r.ID] = r
	}
	return b
}

// Calls returns how many times op was invoked.
func (b *FakeBackend) Calls(op string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.calls[op]
}

// File returns the content stored by the last upload or update of id.
func (b *FakeBackend) File(id string) []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.files[id]
}

func (b *FakeBackend) begin(op string) error {
	b.calls[op]++
	return b.Err
}

func (b *FakeBackend) ListUploads(_ context.Context) ([]datasets.Record, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("list"); err != nil {
		return nil, err
	}
	out := make([]datasets.Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *FakeBackend) GetUpload(_ context.Context, id string) (datasets.Record, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("get"); err != nil {
		return datasets.Record{}, err
	}
	r, ok := b.records[id]
	if !ok {
		return datasets.Record{}, fmt.Errorf("dataset %s: %w", id, apperrors.ErrNotFound)
	}
	return r, nil
}

func (b *FakeBackend) CreateUpload(_ context.Context, u datasets.Upload) (datasets.Record, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("create"); err != nil {
		return datasets.Record{}, err
	}

	content, err := io.ReadAll(u.File)
	if err != nil {
		return datasets.Record{}, err
	}
	for b.records[strconv.Itoa(b.nextID)].ID != "" {
		b.nextID++
	}
	id := strconv.Itoa(b.nextID)
	b.nextID++

	r := datasets.Record{
		ID:              id,
		TableName:       u.TableName,
		DataDescription: u.DataDescription,
		Status:          datasets.StatusPending,
		FileName:        u.FileName,
		FileSize:        int64(len(content)),
		CreatedAt:       time.Now().UTC(),
	}
	b.records[id] = r
	b.files[id] = content
	return r, nil
}

func (b *FakeBackend) UpdateUpload(_ context.Context, id string, p datasets.Patch) (datasets.Record, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("update"); err != nil {
		return datasets.Record{}, err
	}
	r, ok := b.records[id]
	if !ok {
		return datasets.Record{}, fmt.Errorf("dataset %s: %w", id, apperrors.ErrNotFound)
	}
	if p.TableName != "" {
		r.TableName = p.TableName
	}
	if p.DataDescription != "" {
		r.DataDescription = p.DataDescription
	}
	if p.File != nil {
		content, err := io.ReadAll(p.File)
		if err != nil {
			return datasets.Record{}, err
		}
		r.FileName = p.FileName
		r.FileSize = int64(len(content))
		b.files[id] = content
	}
	b.records[id] = r
	return r, nil
}

func (b *FakeBackend) DeleteUpload(_ context.Context, id string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("delete"); err != nil {
		return err
	}
	if _, ok := b.records[id]; !ok {
		return fmt.Errorf("dataset %s: %w", id, apperrors.ErrNotFound)
	}
	delete(b.records, id)
	delete(b.columns, id)
	delete(b.files, id)
	return nil
}

func (b *FakeBackend) SetUploadStatus(_ context.Context, id string, rev datasets.Review) (datasets.Record, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("status"); err != nil {
		return datasets.Record{}, err
	}
	r, ok := b.records[id]
	if !ok {
		return datasets.Record{}, fmt.Errorf("dataset %s: %w", id, apperrors.ErrNotFound)
	}
	r.Status = rev.Status
	r.ReviewComment = rev.Comment
	b.records[id] = r
	return r, nil
}

func (b *FakeBackend) ListColumns(_ context.Context, id string) ([]datasets.Column, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("columns"); err != nil {
		return nil, err
	}
	return append([]datasets.Column(nil), b.columns[id]...), nil
}

func (b *FakeBackend) AddColumn(_ context.Context, id string, c datasets.Column) (datasets.Column, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.begin("add-column"); err != nil {
		return datasets.Column{}, err
	}
	b.columns[id] = append(b.columns[id], c)
	return c, nil
}
