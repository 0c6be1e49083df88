package api

import (
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/davidahmann/foundry/internal/evidence"
)

// maxFormMemory bounds how much of a multipart body is buffered in
// memory before spilling to disk; per-file limits are enforced later by
// the evidence store.
const maxFormMemory = 16 << 20

type Handler struct {
	Service   *InspectService
	Custodian string
}

var formFields = []struct {
	field string
	role  evidence.Role
}{
	{"evidence", evidence.RolePrimaryVisual},
	{"audio", evidence.RoleSecondaryAudio},
	{"report", evidence.RoleBenchmarkReport},
}

func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed multipart request"})
		return
	}

	var uploads []Upload
	var open []multipart.File
	defer func() {
		for _, f := range open {
			_ = f.Close()
		}
	}()

	for _, ff := range formFields {
		files := r.MultipartForm.File[ff.field]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload: " + ff.field})
			return
		}
		open = append(open, f)
		uploads = append(uploads, Upload{
			Role:      ff.role,
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Body:      f,
		})
	}

	recipient := r.FormValue("recipient")
	idemKey := r.Header.Get("X-Idempotency-Key")

	env, err := h.Service.Run(r.Context(), uploads, recipient, idemKey)
	switch {
	case errors.Is(err, ErrNoEvidence),
		errors.Is(err, evidence.ErrMediaType),
		errors.Is(err, evidence.ErrTooLarge):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		log.Printf("inspect: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, env)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"custodian": h.Custodian,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
