package server

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/jrsteele09/bimi-admin/internal/errors"
)

//go:embed static/*
var dashboardAssets embed.FS

var assetFS = sync.OnceValue(func() fs.FS {
	sub, err := fs.Sub(dashboardAssets, "static")
	if err != nil {
		panic("dashboard assets: " + err.Error())
	}
	return sub
})

// writeAsset sends one embedded dashboard asset. Only flat, known names are
// served; anything else is ErrNotFound.
func writeAsset(w http.ResponseWriter, name string) error {
	if name == "" || strings.Contains(name, "/") || !fs.ValidPath(name) {
		return errors.Wrapf(errors.ErrNotFound, "asset %q", name)
	}
	data, err := fs.ReadFile(assetFS(), name)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "asset %q: %v", name, err)
	}

	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "write asset %q", name)
	}
	return nil
}
