package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	kspai "github.com/kisahsukses/kspai/internal"
)

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Resolver.Sessions().Get(chi.URLParam(r, "id"))
	if sess.History == nil {
		sess.History = []kspai.Message{}
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Resolver.Sessions().Delete(chi.URLParam(r, "id")) {
		writeError(w, kspai.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		s.deps.Cache.Purge(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}
