package www

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"
)

const maxBodyBytes = 1 << 20

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("www: encode response: %v", err)
	}
}

// decodeBody reads a JSON object into v. An empty body leaves v zeroed so
// that field validation reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeLifecycleError maps engine errors onto HTTP statuses.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var (
		ve *lifecycle.ValidationError
		se *lifecycle.ChainSubmissionError
		qe *lifecycle.ChainQueryError
	)
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Message, http.StatusBadRequest)
	case errors.As(err, &se):
		jsonError(w, se.Message, http.StatusInternalServerError)
	case errors.As(err, &qe):
		jsonError(w, qe.Message, http.StatusInternalServerError)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// numberText holds a numeric field as the caller wrote it. It accepts a JSON
// number or a string; anything else is a malformed body.
type numberText string

func (n *numberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*n = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numberText(s)
		return nil
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return err
		}
		*n = numberText(num)
		return nil
	}
}
