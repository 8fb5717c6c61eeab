package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
)

// errorResponse is the JSON envelope for every error the API surfaces.
// Raw error structure never leaks to the caller.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// decodeRequest decodes a JSON request body into v.
func decodeRequest(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// respondJSON writes v as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, log hclog.Logger, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("error encoding response", "error", err)
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, log hclog.Logger, code int, msg string) {
	respondJSON(w, log, code, errorResponse{Status: "error", Message: msg})
}

// requiredFieldsMessage turns a validation error into a message naming the
// offending fields. Field names come from the json tags.
func requiredFieldsMessage(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for field := range verrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return fmt.Sprintf("Missing required fields: %s", strings.Join(fields, ", "))
	}
	return fmt.Sprintf("Invalid request: %v", err)
}
