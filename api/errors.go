package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mharding/shopfront/shop"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shop.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, shop.ErrInvalidCredentials),
		errors.Is(err, shop.ErrMFACodeInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shop.ErrAccountDeactivated):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, shop.ErrEmailTaken),
		errors.Is(err, shop.ErrUsernameTaken),
		errors.Is(err, shop.ErrMFAAlreadyEnabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shop.ErrEmptyCart),
		errors.Is(err, shop.ErrOutOfStock),
		errors.Is(err, shop.ErrInsufficientStock),
		errors.Is(err, shop.ErrCardRequired),
		errors.Is(err, shop.ErrBankRequired),
		errors.Is(err, shop.ErrInvalidOrderStatus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, shop.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
