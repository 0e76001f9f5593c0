package server

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/jrsteele09/bimi-admin/internal/utils"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"fileSize": utils.FormatFileSize,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "Unknown"
		}
		return t.Local().Format("2 Jan 2006, 15:04")
	},
	"lower": strings.ToLower,
}

// ParseTemplate parses a page from the embedded filesystem together with the
// shared layout. Pages define a "content" block.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}
