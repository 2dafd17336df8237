// Package http provides HTTP handlers for the credential API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vkotelnikov/credvault/internal/crypto"
	"github.com/vkotelnikov/credvault/internal/export"
	"github.com/vkotelnikov/credvault/internal/models"
	"github.com/vkotelnikov/credvault/internal/service"
)

// CredentialService defines the operations required by the handlers.
type CredentialService interface {
	Create(ctx context.Context, kind models.Kind, in service.CreateInput) (*models.Credential, error)
	Read(ctx context.Context, kind models.Kind, id string) (*models.Credential, string, error)
	ReadLegacy(ctx context.Context, kind models.Kind, id, passphrase string) (*models.Credential, string, error)
	List(ctx context.Context, kind models.Kind, containerID string) ([]models.Credential, error)
	Search(ctx context.Context, kind models.Kind, query string) ([]models.Credential, error)
	Update(ctx context.Context, kind models.Kind, id string, in service.UpdateInput) (*models.Credential, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}

// CredentialsHandler handles HTTP requests for credential CRUD, search
// and export.
type CredentialsHandler struct {
	Service CredentialService
}

// readResponse is the payload returned by single-record reads.
type readResponse struct {
	Credential *models.Credential `json:"credential"`
	Value      string             `json:"value,omitempty"`
}

// kindFromRequest parses and validates the kind route parameter.
func kindFromRequest(r *http.Request) (models.Kind, error) {
	kind := models.Kind(chi.URLParam(r, "kind"))
	if _, ok := models.DescriptorFor(kind); !ok {
		return "", models.NewValidationError("kind", "unknown kind")
	}
	return kind, nil
}

// Create handles POST /api/{kind}.
func (h *CredentialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in service.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	cred, err := h.Service.Create(r.Context(), kind, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

// Read handles GET /api/{kind}/{id}. Passing a passphrase query
// parameter decrypts under the legacy passphrase strategy instead of the
// identity-derived key.
func (h *CredentialsHandler) Read(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")

	var cred *models.Credential
	var value string
	if passphrase := r.URL.Query().Get("passphrase"); passphrase != "" {
		cred, value, err = h.Service.ReadLegacy(r.Context(), kind, id, passphrase)
	} else {
		cred, value, err = h.Service.Read(r.Context(), kind, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Credential: cred, Value: value})
}

// List handles GET /api/{kind}, optionally filtered by ?container=.
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.Service.List(r.Context(), kind, r.URL.Query().Get("container"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Search handles GET /api/{kind}/search?q=.
func (h *CredentialsHandler) Search(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.Service.Search(r.Context(), kind, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Update handles PATCH /api/{kind}/{id}.
func (h *CredentialsHandler) Update(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in service.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	cred, err := h.Service.Update(r.Context(), kind, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

// Delete handles DELETE /api/{kind}/{id}.
func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportEnv handles GET /api/{kind}/export/env: lists the caller's
// records, decrypts each and renders .env lines.
func (h *CredentialsHandler) ExportEnv(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, values, err := h.collect(r.Context(), kind, r.URL.Query().Get("container"))
	if err != nil {
		writeError(w, err)
		return
	}
	pairs := make([]export.Pair, 0, len(records))
	for _, rec := range records {
		pairs = append(pairs, export.Pair{Name: rec.Name, Value: values[rec.ID]})
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(export.ToEnv(pairs)))
}

// ExportCSV handles GET /api/{kind}/export/csv.
func (h *CredentialsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, values, err := h.collect(r.Context(), kind, r.URL.Query().Get("container"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := export.ToCSV(records, values)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// collect lists metadata records and reads each one for its plaintext.
func (h *CredentialsHandler) collect(ctx context.Context, kind models.Kind, containerID string) ([]models.Credential, map[string]string, error) {
	records, err := h.Service.List(ctx, kind, containerID)
	if err != nil {
		return nil, nil, err
	}
	values := make(map[string]string, len(records))
	for _, rec := range records {
		_, value, err := h.Service.Read(ctx, kind, rec.ID)
		if err != nil {
			return nil, nil, err
		}
		values[rec.ID] = value
	}
	return records, values, nil
}

// GeneratePassword handles POST /api/password.
func GeneratePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Length int `json:"length"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Length <= 0 {
		req.Length = 24
	}
	password, err := crypto.GeneratePassword(req.Length)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrAuthenticationRequired):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrNotEmpty):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrDecryptionFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
