package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kitabpay/backend/internal/services"
)

// statusForError maps service errors to HTTP statuses. Partial-failure
// wrappers land on 500 because the client's request was valid and the system
// could not complete it.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrMalformedPayload),
		errors.Is(err, services.ErrWrongPayloadKind),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrSelfPurchaseNotAllowed),
		errors.Is(err, services.ErrSelfTransferNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrRecipientNotFound),
		errors.Is(err, services.ErrListingNotFound),
		errors.Is(err, services.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrAlreadySold),
		errors.Is(err, services.ErrAlreadyPublished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sendServiceError(w http.ResponseWriter, err error) {
	services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
}

// decodeBody reads a single JSON object from the request into dst with the
// standard size cap and unknown-field rejection. It writes the error response
// itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func contextUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value("userID").(string)
	return userID, ok && userID != ""
}
