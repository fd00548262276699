package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/target/specops-api/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Unknown fields are rejected. Returns true if successful, false if there was an error
// (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if status, err := decodeBody(r, dst, true); err != nil {
		WriteError(w, ErrorParams{Code: status, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// decodeBody decodes the request body into dst. On failure it also returns the
// status to answer with: 413 for an oversized body, 400 otherwise.
func decodeBody(r *http.Request, dst any, strict bool) (int, error) {
	dec := json.NewDecoder(r.Body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, err
		}
		return http.StatusBadRequest, err
	}
	return http.StatusOK, nil
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// errorBody is the uniform error shape: a machine code plus the detail text.
type errorBody struct {
	Error      string   `json:"error"`
	Detail     string   `json:"detail"`
	StatusCode int      `json:"status_code,omitempty"`
	Fields     []string `json:"fields,omitempty"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := errorBody{Error: p.ErrCode}
	if p.Err != nil {
		d := apperrors.DetailOf(p.Err)
		body.Detail = d.Detail
		body.StatusCode = d.StatusCode
		var appErr *apperrors.AppError
		if errors.As(p.Err, &appErr) {
			body.Fields = appErr.Fields
		}
	}
	WriteJSON(w, p.Code, body)
}

// WriteAppError maps err's code to an HTTP status and writes it.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	WriteError(w, ErrorParams{Code: code.HTTPStatus(), ErrCode: string(code), Err: err})
}
