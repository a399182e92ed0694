package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nguyengg/rangezip/service"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the three HTTP endpoints behind the cors, request-id and
// logging middleware, grounded on buildbarn-bb-storage's mux.NewRouter/
// router.HandleFunc pattern.
func NewRouter(facade *service.Facade, logger *logrus.Logger) http.Handler {
	s := &Server{Facade: facade, Logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/list-files", s.handleListFiles).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/download_files", s.handleDownloadFiles).Methods(http.MethodPost, http.MethodOptions)

	var h http.Handler = r
	h = cors(h)
	h = withLogging(logger, h)
	h = withRequestID(h)
	return h
}
