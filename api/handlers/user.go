package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

// User exported for testing purposes
type User struct {
	DB       databases.UserDatabase
	Provider *session.Provider
	Auth     *api.Auth
	Notifier realtime.Notifier
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role"`
}

// RegisterHandler creates an account. Citizens and sweepers may sign
// themselves up, an admin account needs an admin bearer token.
func (u User) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, maxJSONBytes); err != nil {
		config.ErrorStatus("failed to register", statusFor(err), w, err)
		return
	}
	role := models.RoleCitizen
	if req.Role != "" {
		parsed, err := models.ParseRole(req.Role)
		if err != nil {
			config.ErrorStatus("failed to register", http.StatusBadRequest, w, err)
			return
		}
		role = parsed
	}
	if role == models.RoleAdmin {
		caller, err := u.Auth.Identify(api.BearerToken(r))
		if err != nil {
			config.ErrorStatus("failed to register", http.StatusUnauthorized, w, err)
			return
		}
		if !caller.Is(models.RoleAdmin) {
			config.ErrorStatus("failed to register", http.StatusForbidden, w, fmt.Errorf("%s may not create admins", caller.Role))
			return
		}
	}

	id, err := u.Provider.Register(r.Context(), req.Email, req.Password, session.Profile{Name: req.Name, Role: role})
	if err != nil {
		config.ErrorStatus("failed to register", statusFor(err), w, err)
		return
	}
	notify(r.Context(), u.Notifier, databases.UserCollection)

	writeJSON(w, http.StatusCreated, models.CreatedResponse{ID: id})
}

// MeHandler returns the signed in user's profile
func (u User) MeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to get profile", statusFor(err), w, err)
		return
	}
	user, err := u.Provider.User(r.Context(), id.ID)
	if err != nil {
		config.ErrorStatus("failed to get profile", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SweepersHandler lists every sweeper, for the admin assignment picker
func (u User) SweepersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	sweepers, err := findSweepers(ctx, u.DB)
	if err != nil {
		config.ErrorStatus("failed to get sweepers", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugw("listed sweepers", "count", len(sweepers))
	writeJSON(w, http.StatusOK, sweepers)
}

// sweeperSummary is the public view of a sweeper account
type sweeperSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func findSweepers(ctx context.Context, db databases.UserDatabase) ([]sweeperSummary, error) {
	users, err := db.Find(ctx, bson.M{"role": models.RoleSweeper}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]sweeperSummary, 0, len(users))
	for _, s := range users {
		out = append(out, sweeperSummary{ID: s.ID.Hex(), Name: s.Name, Email: s.Email})
	}
	return out, nil
}
