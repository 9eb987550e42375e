package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/lifecycle"
	"github.com/linesmerrill/swachhsnap-api/models"
)

// Dashboard exported for testing purposes
type Dashboard struct {
	Complaints databases.ComplaintDatabase
	Events     databases.EventDatabase
	Users      databases.UserDatabase
}

// DashboardView is one full snapshot of a role's dashboard
type DashboardView struct {
	Role        models.Role             `json:"role"`
	Complaints  []models.Complaint      `json:"complaints"`
	Stats       lifecycle.Stats         `json:"stats"`
	Events      []models.VolunteerEvent `json:"events,omitempty"`
	Sweepers    []sweeperSummary        `json:"sweepers,omitempty"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// View builds the caller's dashboard from the current store contents.
// Citizens also get the event list, admins the sweeper directory.
func (d Dashboard) View(ctx context.Context, id api.Identity) (DashboardView, error) {
	cs, err := listComplaints(ctx, d.Complaints, id, nil)
	if err != nil {
		return DashboardView{}, fmt.Errorf("failed to list complaints: %w", err)
	}
	v := DashboardView{
		Role:        id.Role,
		Complaints:  cs,
		Stats:       lifecycle.Summarize(cs),
		GeneratedAt: time.Now().UTC(),
	}
	switch id.Role {
	case models.RoleCitizen:
		if v.Events, err = listEvents(ctx, d.Events); err != nil {
			return DashboardView{}, fmt.Errorf("failed to list events: %w", err)
		}
	case models.RoleAdmin:
		if v.Sweepers, err = findSweepers(ctx, d.Users); err != nil {
			return DashboardView{}, fmt.Errorf("failed to list sweepers: %w", err)
		}
	}
	return v, nil
}

// DashboardHandler returns the caller's dashboard once; the websocket
// stream pushes the same view on every change
func (d Dashboard) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to get dashboard", statusFor(err), w, err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	v, err := d.View(ctx, id)
	if err != nil {
		config.ErrorStatus("failed to get dashboard", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
