package datasets

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jrsteele09/bimi-admin/internal/utils"
)

// Status is the review state of an uploaded dataset.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus normalises a backend status. Anything unrecognised is pending.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusApproved:
		return StatusApproved
	case StatusRejected:
		return StatusRejected
	default:
		return StatusPending
	}
}

// Label is the capitalised form shown in the dashboard.
func (s Status) Label() string {
	switch s {
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return "Pending"
	}
}

// Reviewable reports whether a reviewer may set this status.
func (s Status) Reviewable() bool {
	return s == StatusApproved || s == StatusRejected
}

// Record is one uploaded dataset as listed by the backend.
type Record struct {
	ID              string    `json:"id"`
	TableName       string    `json:"table_name"`
	DataDescription string    `json:"data_description"`
	Status          Status    `json:"status"`
	ReviewComment   string    `json:"review_comment,omitempty"`
	FileName        string    `json:"file_name,omitempty"`
	FileSize        int64     `json:"file_size,omitempty"`
	UploadedBy      string    `json:"uploaded_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// timeLayouts are the created_at formats the backend has been seen to send.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              any    `json:"id"`
		TableName       string `json:"table_name"`
		DataDescription string `json:"data_description"`
		Status          string `json:"status"`
		ReviewComment   string `json:"review_comment"`
		FileName        string `json:"file_name"`
		OriginalName    string `json:"original_filename"`
		FileSize        any    `json:"file_size"`
		UploadedBy      any    `json:"uploaded_by"`
		CreatedAt       string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{
		ID:              utils.ToString(raw.ID),
		TableName:       raw.TableName,
		DataDescription: raw.DataDescription,
		Status:          ParseStatus(raw.Status),
		ReviewComment:   raw.ReviewComment,
		FileName:        raw.FileName,
		UploadedBy:      utils.ToString(raw.UploadedBy),
		CreatedAt:       parseTime(raw.CreatedAt),
	}
	if r.FileName == "" {
		r.FileName = raw.OriginalName
	}
	if size, ok := raw.FileSize.(float64); ok {
		r.FileSize = int64(size)
	}
	return nil
}

// SizeLabel is the human readable file size, empty when unknown.
func (r Record) SizeLabel() string {
	if r.FileSize <= 0 {
		return ""
	}
	return utils.FormatFileSize(r.FileSize)
}

// Column describes one column of an uploaded dataset.
type Column struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string `json:"name"`
		ColumnName  string `json:"column_name"`
		DataType    string `json:"data_type"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Column{Name: raw.Name, DataType: raw.DataType, Description: raw.Description}
	if c.Name == "" {
		c.Name = raw.ColumnName
	}
	if c.DataType == "" {
		c.DataType = raw.Type
	}
	return nil
}
