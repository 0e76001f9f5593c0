package datasets

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/bimi-admin/internal/errors"
)

// AcceptedExtensions are the file types the backend ingests.
var AcceptedExtensions = []string{".csv", ".xlsx", ".xls", ".json"}

// AcceptsFile reports whether name has an accepted extension.
func AcceptsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AcceptedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Upload is a new dataset submission. All fields are required.
type Upload struct {
	FileName        string
	File            io.Reader
	DataDescription string
	TableName       string
}

// Validate checks the submission before any request is made.
func (u Upload) Validate() error {
	var missing []string
	if u.File == nil || u.FileName == "" {
		missing = append(missing, "file")
	}
	if strings.TrimSpace(u.DataDescription) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(u.TableName) == "" {
		missing = append(missing, "table name")
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrValidation, "please provide a %s", strings.Join(missing, ", "))
	}
	if !AcceptsFile(u.FileName) {
		return errors.Wrapf(errors.ErrValidation, "unsupported file type %q, expected one of %s",
			filepath.Ext(u.FileName), strings.Join(AcceptedExtensions, " "))
	}
	return nil
}

// Patch is a partial update. Empty fields are left unchanged.
type Patch struct {
	FileName        string
	File            io.Reader
	DataDescription string
	TableName       string
}

func (p Patch) Empty() bool {
	return p.File == nil && p.DataDescription == "" && p.TableName == ""
}

func (p Patch) Validate() error {
	if p.Empty() {
		return errors.Wrapf(errors.ErrValidation, "nothing to update")
	}
	if p.File != nil && !AcceptsFile(p.FileName) {
		return errors.Wrapf(errors.ErrValidation, "unsupported file type %q, expected one of %s",
			filepath.Ext(p.FileName), strings.Join(AcceptedExtensions, " "))
	}
	return nil
}

// Review is an approve or reject decision on an upload.
type Review struct {
	Status  Status `json:"status"`
	Comment string `json:"review_comment,omitempty"`
}

func (r Review) Validate() error {
	if !r.Status.Reviewable() {
		return errors.Wrapf(errors.ErrValidation, "status must be %s or %s", StatusApproved, StatusRejected)
	}
	return nil
}
