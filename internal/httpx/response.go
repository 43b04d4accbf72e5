package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/lexshelf-orders/internal/checkout"
	"net/http"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, envelope{Error: &errorBody{Code: errCode, Message: msg}})
}

// writeFailure renders a placement failure with the status its reason maps to.
func writeFailure(w http.ResponseWriter, err error) {
	var f *checkout.Failure
	if !errors.As(err, &f) {
		writeError(w, http.StatusInternalServerError, "WRITE_ERROR", "Could not save your order, please try again")
		return
	}
	body := &errorBody{Code: f.Code(), Message: f.Error(), ProductID: f.ProductID}
	if f.Reason == checkout.ErrInsufficientStock || f.Reason == checkout.ErrReservationConflict {
		avail := f.Available
		body.Available = &avail
	}
	writeJSON(w, failureStatus(f), envelope{Error: body})
}

func failureStatus(f *checkout.Failure) int {
	switch f.Reason {
	case checkout.ErrInvalidInput:
		return http.StatusBadRequest
	case checkout.ErrProductNotFound:
		return http.StatusNotFound
	case checkout.ErrInsufficientStock, checkout.ErrReservationConflict:
		return http.StatusConflict
	case checkout.ErrOrderNumberCollision, checkout.ErrUnavailable:
		return http.StatusServiceUnavailable
	case checkout.ErrCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
