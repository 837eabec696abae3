package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

// envelope is the shape of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Count: &n, Data: items})
}

func writeMessage(w http.ResponseWriter, status int, msg string, data any) {
	writeEnvelope(w, status, envelope{Success: true, Message: msg, Data: data})
}

// responder maps errors to the envelope. Unclassified errors are logged and
// answered as a bare 500; dev mode adds the cause.
type responder struct {
	logger zerolog.Logger
	dev    bool
}

func (rs *responder) error(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok && e.Status() != http.StatusInternalServerError {
		writeEnvelope(w, e.Status(), envelope{Message: e.Error()})
		return
	}

	rs.logger.Error().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")

	body := envelope{Message: "Server Error"}
	if rs.dev {
		body.Error = err.Error()
	}
	writeEnvelope(w, http.StatusInternalServerError, body)
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("could not parse JSON body")
	}
	return nil
}
