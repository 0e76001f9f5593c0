package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/internal/errors"
)

// UploadsClient calls the dataset endpoints through an authenticated Doer.
type UploadsClient struct {
	baseURL string
	doer    Doer
}

var _ datasets.Backend = (*UploadsClient)(nil)

func NewUploadsClient(baseURL string, doer Doer) *UploadsClient {
	return &UploadsClient{baseURL: normaliseBaseURL(baseURL), doer: doer}
}

func (c *UploadsClient) call(ctx context.Context, method, target string, body any, out any) error {
	req, err := newJSONRequest(ctx, method, target, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *UploadsClient) do(req *http.Request, out any) error {
	respBody, err := send(c.doer, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeEnvelope(respBody, out); err != nil {
		return errors.Wrapf(errors.ErrInternal, "decode %s %s response: %v", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *UploadsClient) ListUploads(ctx context.Context) ([]datasets.Record, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, endpoint(c.baseURL, RouteUploads), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[datasets.Record](raw, "results", "uploads", "files")
}

func (c *UploadsClient) GetUpload(ctx context.Context, id string) (datasets.Record, error) {
	var r datasets.Record
	err := c.call(ctx, http.MethodGet, endpoint(c.baseURL, RouteUpload, id), nil, &r)
	return r, err
}

func (c *UploadsClient) CreateUpload(ctx context.Context, u datasets.Upload) (datasets.Record, error) {
	req, err := newMultipartRequest(ctx, http.MethodPost, endpoint(c.baseURL, RouteUploads), formFields{
		file:            u.File,
		fileName:        u.FileName,
		tableName:       u.TableName,
		dataDescription: u.DataDescription,
	})
	if err != nil {
		return datasets.Record{}, err
	}
	var r datasets.Record
	err = c.do(req, &r)
	return r, err
}

func (c *UploadsClient) UpdateUpload(ctx context.Context, id string, p datasets.Patch) (datasets.Record, error) {
	req, err := newMultipartRequest(ctx, http.MethodPatch, endpoint(c.baseURL, RouteUploadUpdate, id), formFields{
		file:            p.File,
		fileName:        p.FileName,
		tableName:       p.TableName,
		dataDescription: p.DataDescription,
	})
	if err != nil {
		return datasets.Record{}, err
	}
	var r datasets.Record
	err = c.do(req, &r)
	return r, err
}

func (c *UploadsClient) DeleteUpload(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, endpoint(c.baseURL, RouteUpload, id), nil, nil)
}

func (c *UploadsClient) SetUploadStatus(ctx context.Context, id string, r datasets.Review) (datasets.Record, error) {
	var rec datasets.Record
	err := c.call(ctx, http.MethodPatch, endpoint(c.baseURL, RouteUploadStatus, id), r, &rec)
	return rec, err
}

func (c *UploadsClient) ListColumns(ctx context.Context, id string) ([]datasets.Column, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, endpoint(c.baseURL, RouteUploadColumns, id), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[datasets.Column](raw, "columns", "results")
}

func (c *UploadsClient) AddColumn(ctx context.Context, id string, col datasets.Column) (datasets.Column, error) {
	var out datasets.Column
	if err := c.call(ctx, http.MethodPost, endpoint(c.baseURL, RouteUploadColumns, id), col, &out); err != nil {
		return datasets.Column{}, err
	}
	if out.Name == "" {
		out = col
	}
	return out, nil
}

// decodeList accepts a bare array or an object holding the array under one
// of keys. Anything else decodes as an empty list.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}

	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.Wrapf(errors.ErrInternal, "decode list: %v", err)
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []T{}, nil
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && len(v) > 0 && v[0] == '[' {
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, errors.Wrapf(errors.ErrInternal, "decode list %s: %v", k, err)
			}
			return items, nil
		}
	}
	return []T{}, nil
}

type formFields struct {
	file            io.Reader
	fileName        string
	tableName       string
	dataDescription string
}

// newMultipartRequest buffers the form in memory so the gateway can replay
// it after a token refresh. Empty fields are omitted.
func newMultipartRequest(ctx context.Context, method, target string, f formFields) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if f.file != nil {
		part, err := w.CreateFormFile("file", f.fileName)
		if err != nil {
			return nil, errors.Wrapf(err, "build upload form")
		}
		if _, err := io.Copy(part, f.file); err != nil {
			return nil, errors.Wrapf(err, "read upload file %s", f.fileName)
		}
	}
	for name, value := range map[string]string{
		"table_name":       f.tableName,
		"data_description": f.dataDescription,
	} {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, errors.Wrapf(err, "build upload form")
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrapf(err, "build upload form")
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s request", method, target)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}
