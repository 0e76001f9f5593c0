package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/screens"
	"github.com/rs/zerolog/log"
)

const (
	maxUploadBytes  = 100 << 20
	maxUploadMemory = 32 << 20

	messageUploaded = "Dataset uploaded successfully! The data is now available for the Bimi chatbot."
)

// UploadSubmissionHandler handles the upload form (POST /dashboard/upload)
func (s *Server) UploadSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFrom(r)
		if !sess.Role().CanUpload() {
			http.Redirect(w, r, RouteRestricted, http.StatusSeeOther)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		view := newUploadView()
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			view.Error = "The upload could not be read. Files must be smaller than 100 MB."
			s.renderUpload(w, r, http.StatusBadRequest, view)
			return
		}
		defer r.MultipartForm.RemoveAll()

		view.TableName = r.FormValue("table_name")
		view.DataDescription = r.FormValue("data_description")

		upload := datasets.Upload{
			TableName:       view.TableName,
			DataDescription: view.DataDescription,
		}
		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			upload.File = file
			upload.FileName = header.Filename
		case !errors.Is(err, http.ErrMissingFile):
			view.Error = "The selected file could not be read."
			s.renderUpload(w, r, http.StatusBadRequest, view)
			return
		}

		if _, err := s.services.Datasets.Upload(r.Context(), upload); err != nil {
			if sessionLost(err) {
				s.sessionEnded(w, r)
				return
			}
			log.Warn().Err(err).Str("table", upload.TableName).Msg("upload rejected")
			view.Error = api.DetailOf(err)
			s.renderUpload(w, r, uploadErrorStatus(err), view)
			return
		}

		s.flash.set(flashSuccess, messageUploaded)
		http.Redirect(w, r, RouteUpload, http.StatusSeeOther)
	}
}

func (s *Server) renderUpload(w http.ResponseWriter, r *http.Request, status int, view *UploadView) {
	data := s.pageData(s.sessionFrom(r), screens.Upload)
	data.Upload = view
	s.render(w, screens.Upload, status, data)
}

func uploadErrorStatus(err error) int {
	var apiErr *api.Error
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		return apiErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

// DeleteDatasetHandler removes a dataset (POST /dashboard/datasets/{id}/delete)
func (s *Server) DeleteDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.services.Datasets.Delete(r.Context(), id); err != nil {
			s.actionFailed(w, r, err)
			return
		}
		s.flash.set(flashSuccess, "Dataset deleted.")
		http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
	}
}

// ReviewDatasetHandler approves or rejects a dataset (POST /dashboard/datasets/{id}/status)
func (s *Server) ReviewDatasetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessionFrom(r).Role().CanReview() {
			s.flash.set(flashError, "Only admins can review datasets.")
			http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
			return
		}

		review := datasets.Review{
			Status:  datasets.Status(strings.ToLower(r.FormValue("status"))),
			Comment: strings.TrimSpace(r.FormValue("review_comment")),
		}
		if _, err := s.services.Datasets.SetStatus(r.Context(), r.PathValue("id"), review); err != nil {
			s.actionFailed(w, r, err)
			return
		}
		s.flash.set(flashSuccess, "Dataset "+string(review.Status)+".")
		http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
	}
}

// actionFailed reports err on the next page. A lost session goes to login.
func (s *Server) actionFailed(w http.ResponseWriter, r *http.Request, err error) {
	if sessionLost(err) {
		s.sessionEnded(w, r)
		return
	}
	log.Err(err).Str("path", r.URL.Path).Msg("dashboard action failed")
	s.flash.set(flashError, api.DetailOf(err))
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

// returnTo keeps the manage screen's filters across an action. Only local
// manage paths are accepted.
func returnTo(r *http.Request) string {
	target := r.FormValue("return_to")
	if strings.HasPrefix(target, RouteManage) && !strings.Contains(target, "//") {
		return target
	}
	return RouteManage
}
