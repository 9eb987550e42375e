package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/geo"
	"github.com/linesmerrill/swachhsnap-api/lifecycle"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

var validate = validator.New()

// maxJSONBytes caps request bodies that carry no image
const maxJSONBytes = 64 << 10

var (
	errBadRequest   = errors.New("bad request")
	errBodyTooLarge = errors.New("request body too large")
	errNoIdentity   = errors.New("no identity on request")
)

// statusFor maps a domain error to its http status
func statusFor(err error) int {
	var uploadErr *media.UploadError
	switch {
	case errors.Is(err, errNoIdentity),
		errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, api.ErrSignedOut):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrForbidden),
		errors.Is(err, lifecycle.ErrNotAssignee),
		errors.Is(err, lifecycle.ErrNotReporter):
		return http.StatusForbidden
	case errors.Is(err, session.ErrDuplicateEmail),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrMissingAfterImage),
		errors.Is(err, lifecycle.ErrFeedbackRecorded),
		errors.Is(err, databases.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidProfile),
		errors.Is(err, media.ErrInvalidImage),
		errors.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, databases.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, media.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &uploadErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// outcomeFor is the metrics label for an action result
func outcomeFor(err error) string {
	if err == nil {
		return "ok"
	}
	switch statusFor(err) {
	case http.StatusForbidden, http.StatusUnauthorized:
		return "forbidden"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "invalid"
	case http.StatusNotFound:
		return "not_found"
	}
	return "error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// limitBody stops reading the body after limit bytes
func limitBody(w http.ResponseWriter, r *http.Request, limit int64) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
}

// bodyError classifies a failed body read
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// decodeJSON reads at most limit bytes of body into dst and runs its validate tags
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) error {
	limitBody(w, r, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func identity(r *http.Request) (api.Identity, error) {
	id, ok := api.IdentityFrom(r.Context())
	if !ok {
		return api.Identity{}, errNoIdentity
	}
	return id, nil
}

// actor is the caller as the lifecycle package sees it
func actor(id api.Identity) models.User {
	oid, _ := primitive.ObjectIDFromHex(id.ID)
	return models.User{ID: oid, Name: id.Name, Email: id.Email, Role: id.Role}
}

func objectID(hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return oid, nil
}

// notify tells every open view that collection changed. A failed publish
// only delays views until the next change, so it is logged, not returned.
func notify(ctx context.Context, n realtime.Notifier, collection string) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, collection); err != nil {
		zap.S().Warnw("failed to publish change", "collection", collection, "error", err)
	}
}
