package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	data := s.catalog.Components(s.showHidden)

	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		panic(http.ErrAbortHandler)
	}
}
