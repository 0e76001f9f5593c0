package datasets_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jrsteele09/bimi-admin/datasets"
	fakedatasetbackend "github.com/jrsteele09/bimi-admin/datasets/backendfakes"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/stretchr/testify/require"
)

func newService(records ...datasets.Record) (*datasets.Service, *fakedatasetbackend.FakeBackend) {
	backend := fakedatasetbackend.NewFakeBackend(records...)
	return datasets.NewService(backend), backend
}

func validUpload() datasets.Upload {
	return datasets.Upload{
		FileName:        "budget.csv",
		File:            strings.NewReader("a,b\n"),
		DataDescription: " State budgets ",
		TableName:       " budget_2024 ",
	}
}

func TestListIsCachedUntilInvalidated(t *testing.T) {
	svc, backend := newService(sample()...)
	ctx := context.Background()

	first, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 4)

	_, err = svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, backend.Calls("list"))

	svc.Invalidate()
	_, err = svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, backend.Calls("list"))
}

func TestListErrorIsNotCached(t *testing.T) {
	svc, backend := newService(sample()...)
	backend.Err = fakedatasetbackend.ErrInjected

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, fakedatasetbackend.ErrInjected)

	backend.Err = nil
	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)
}

func TestFindAppliesQuery(t *testing.T) {
	svc, _ := newService(sample()...)

	got, err := svc.Find(context.Background(), datasets.Query{Status: "rejected"})
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, ids(got))
}

func TestUploadValidatesBeforeCallingBackend(t *testing.T) {
	svc, backend := newService()

	_, err := svc.Upload(context.Background(), datasets.Upload{TableName: "t"})
	require.ErrorIs(t, err, errors.ErrValidation)
	require.Contains(t, err.Error(), "file, description")
	require.Zero(t, backend.Calls("create"))
}

func TestUploadTrimsAndInvalidates(t *testing.T) {
	svc, backend := newService(sample()...)
	ctx := context.Background()
	_, err := svc.List(ctx)
	require.NoError(t, err)

	rec, err := svc.Upload(ctx, validUpload())
	require.NoError(t, err)
	require.Equal(t, "budget_2024", rec.TableName)
	require.Equal(t, "State budgets", rec.DataDescription)
	require.Equal(t, datasets.StatusPending, rec.Status)
	require.Equal(t, "a,b\n", string(backend.File(rec.ID)))

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, 2, backend.Calls("list"))
}

func TestUpdate(t *testing.T) {
	svc, backend := newService(sample()...)
	ctx := context.Background()

	_, err := svc.Update(ctx, "1", datasets.Patch{})
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.Update(ctx, "1", datasets.Patch{FileName: "notes.txt", File: strings.NewReader("x")})
	require.ErrorIs(t, err, errors.ErrValidation)
	require.Zero(t, backend.Calls("update"))

	rec, err := svc.Update(ctx, "1", datasets.Patch{DataDescription: "Revised"})
	require.NoError(t, err)
	require.Equal(t, "Revised", rec.DataDescription)
	require.Equal(t, "budget_2023", rec.TableName)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(sample()...)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, " "), errors.ErrValidation)
	require.NoError(t, svc.Delete(ctx, "2"))
	require.ErrorIs(t, svc.Delete(ctx, "2"), errors.ErrNotFound)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.NotContains(t, ids(records), "2")
}

func TestSetStatus(t *testing.T) {
	svc, backend := newService(sample()...)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, "2", datasets.Review{Status: datasets.StatusPending})
	require.ErrorIs(t, err, errors.ErrValidation)
	require.Zero(t, backend.Calls("status"))

	rec, err := svc.SetStatus(ctx, "2", datasets.Review{Status: datasets.StatusApproved, Comment: "looks good"})
	require.NoError(t, err)
	require.Equal(t, datasets.StatusApproved, rec.Status)
	require.Equal(t, "looks good", rec.ReviewComment)
}

func TestColumns(t *testing.T) {
	svc, _ := newService(sample()...)
	ctx := context.Background()

	_, err := svc.AddColumn(ctx, "1", datasets.Column{})
	require.ErrorIs(t, err, errors.ErrValidation)

	_, err = svc.AddColumn(ctx, "1", datasets.Column{Name: "year", DataType: "integer"})
	require.NoError(t, err)

	cols, err := svc.Columns(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []datasets.Column{{Name: "year", DataType: "integer"}}, cols)
}

func TestUploadValidate(t *testing.T) {
	require.NoError(t, validUpload().Validate())

	u := validUpload()
	u.FileName = "report.pdf"
	err := u.Validate()
	require.ErrorIs(t, err, errors.ErrValidation)
	require.Contains(t, err.Error(), ".pdf")

	require.True(t, datasets.AcceptsFile("DATA.XLSX"))
	require.False(t, datasets.AcceptsFile("data"))
}

func TestRecordDecodesLooseBackendShapes(t *testing.T) {
	var r datasets.Record
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12, "table_name": "t", "status": null, "original_filename": "t.xls",
		"created_at": "2024-03-04 05:06:07", "uploaded_by": 3
	}`), &r))

	require.Equal(t, "12", r.ID)
	require.Equal(t, datasets.StatusPending, r.Status)
	require.Equal(t, "t.xls", r.FileName)
	require.Equal(t, "3", r.UploadedBy)
	require.Equal(t, 5, r.CreatedAt.Hour())
	require.Empty(t, r.SizeLabel())
}

// slowListBackend reads the list and then holds it until released, like a
// slow response already on the wire.
type slowListBackend struct {
	*fakedatasetbackend.FakeBackend
	fetched chan struct{}
	release chan struct{}
}

func (b *slowListBackend) ListUploads(ctx context.Context) ([]datasets.Record, error) {
	records, err := b.FakeBackend.ListUploads(ctx)
	b.fetched <- struct{}{}
	<-b.release
	return records, err
}

func TestInFlightListDoesNotOutliveMutation(t *testing.T) {
	backend := &slowListBackend{
		FakeBackend: fakedatasetbackend.NewFakeBackend(datasets.Record{ID: "1", TableName: "gone"}),
		fetched:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := datasets.NewService(backend)
	ctx := context.Background()

	var inFlight []datasets.Record
	done := make(chan error)
	go func() {
		var err error
		inFlight, err = svc.List(ctx)
		done <- err
	}()

	<-backend.fetched
	require.NoError(t, svc.Delete(ctx, "1"))
	close(backend.release)
	require.NoError(t, <-done)
	require.Len(t, inFlight, 1, "the in-flight caller still gets what it fetched")

	go func() { <-backend.fetched }()
	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, 2, backend.Calls("list"))
}
