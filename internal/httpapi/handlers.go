package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/rangezip/internal/apierr"
	"github.com/nguyengg/rangezip/internal/reqid"
	"github.com/nguyengg/rangezip/service"
	"github.com/sirupsen/logrus"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Facade *service.Facade
	Logger *logrus.Logger
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Server is working!"))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	var req listFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.BadRequest, err, "invalid JSON body"))
		return
	}

	result, err := s.Facade.List(r.Context(), service.ArchiveRequest{
		URL:           req.URL,
		Cookies:       req.Cookies,
		ImpersonateUA: req.UseUA,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	files := make([]fileEntry, len(result.Members))
	for i, m := range result.Members {
		files[i] = toFileEntry(m)
	}

	s.writeJSON(w, http.StatusOK, listFilesResponse{Status: "ok", Files: files})
}

func (s *Server) handleDownloadFiles(w http.ResponseWriter, r *http.Request) {
	var req downloadFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apierr.Wrap(apierr.BadRequest, err, "invalid JSON body"))
		return
	}

	resolved, err := s.Facade.Resolve(r.Context(), service.DownloadRequest{
		ArchiveRequest: service.ArchiveRequest{
			URL:           req.URL,
			Cookies:       req.Cookies,
			ImpersonateUA: req.UseUA,
		},
		Indices: req.Files,
	})
	if err != nil {
		// nothing has been written to w yet, so the normal JSON error
		// path still applies here.
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="download.zip"`)

	result, err := s.Facade.StreamDownload(r.Context(), resolved, w)
	if err != nil {
		// headers (and possibly some body bytes) may already be flushed;
		// there is no way to downgrade to a JSON error response at this
		// point, so just log it.
		s.Logger.WithFields(logrus.Fields{
			"request_id": reqid.FromContext(r.Context()),
			"error":      err.Error(),
		}).Error("download failed mid-stream")
		return
	}

	for _, skip := range result.Skipped {
		s.Logger.WithFields(logrus.Fields{
			"request_id": reqid.FromContext(r.Context()),
			"filename":   skip.Member.FileName,
			"size":       humanize.Bytes(uint64(skip.Member.CompressedSize)),
			"reason":     skip.Reason.Error(),
		}).Warn("skipped member")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.Wrap(apierr.Internal, err, "unexpected error")
	}

	s.Logger.WithFields(logrus.Fields{
		"request_id": reqid.FromContext(r.Context()),
		"kind":       ae.Kind.String(),
	}).Error(ae.Error())

	s.writeJSON(w, ae.Kind.HTTPStatus(), errorResponse{Status: "error", Message: ae.Error()})
}
