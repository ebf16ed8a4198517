package httpstore

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/timepledge/timepledge/src/internal/domain"
	"github.com/timepledge/timepledge/src/internal/ports"
)

// HTTPServerStore exposes the authoritative store's device-facing surface
// so daemons never hold database credentials.
type HTTPServerStore struct {
	store ports.RemoteStore
}

func NewServerStore(store ports.RemoteStore) *HTTPServerStore {
	return &HTTPServerStore{store: store}
}

func (h *HTTPServerStore) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/internal/store/get", h.handleGet)
	mux.HandleFunc("/internal/store/merge", h.handleMerge)
	mux.HandleFunc("/internal/store/create", h.handleCreate)
}

func (h *HTTPServerStore) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	doc, err := h.store.Get(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[HTTP Store] Get failed for %s: %v", userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(doc)
}

func (h *HTTPServerStore) handleMerge(w http.ResponseWriter, r *http.Request) {
	var payload mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.UserID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	err := h.store.MergeWrite(r.Context(), payload.UserID, payload.Fields)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[HTTP Store] Merge failed for %s: %v", payload.UserID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPServerStore) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.Document == nil {
		http.Error(w, "userId and document required", http.StatusBadRequest)
		return
	}

	if err := h.store.Overwrite(r.Context(), payload.UserID, payload.Document); err != nil {
		log.Printf("[HTTP Store] Create failed for %s: %v", payload.UserID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("[HTTP Store] Created document for user %s", payload.UserID)
	w.WriteHeader(http.StatusOK)
}
