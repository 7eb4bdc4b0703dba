// Package handlers exposes the services over REST/JSON.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ukydev/garage-service/internal/apperror"
	"github.com/ukydev/garage-service/internal/middleware"
	"github.com/ukydev/garage-service/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperror.BadRequest("Failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperror.BadRequest("Invalid JSON")
	}
	return nil
}

// actorFrom returns the authenticated caller of r.
func actorFrom(r *http.Request) (services.Actor, error) {
	claims, _ := middleware.GetUserFromContext(r.Context())
	return services.ActorFromClaims(claims)
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperror.BadRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}
