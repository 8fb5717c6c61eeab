package api

import (
	"net/http"

	"github.com/hashicorp-forge/chartpress/internal/server"
	"github.com/hashicorp-forge/chartpress/internal/version"
)

// RootResponse describes the service.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// RootHandler returns the service banner.
func RootHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The mux routes every unmatched path here.
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		respondJSON(w, srv.Logger, http.StatusOK, RootResponse{
			Message: "chartpress API",
			Version: version.Version,
		})
	})
}
