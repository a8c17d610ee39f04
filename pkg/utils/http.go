package utils

import (
	"encoding/json"
	"net/http"
)

// JSONWrite encodes v with the given status. Encoding errors are
// swallowed; the status line is already on the wire.
func JSONWrite(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes a {"error": msg} body with the given status.
func JSONError(w http.ResponseWriter, status int, msg string) {
	JSONWrite(w, status, map[string]string{"error": msg})
}
