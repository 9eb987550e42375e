// Package docs SwachhSnap API.
//
// Civic issue reporting for citizens, sweepers and municipal admins.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//     - multipart/form-data
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/swachhsnap-api/api/handlers"
	"github.com/linesmerrill/swachhsnap-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/complaints complaints listComplaints
// Lists the caller's complaints, high priority first then newest.
// responses:
//   200: complaintsResponse

// The complaints the caller's role can see
// swagger:response complaintsResponse
type complaintsResponseWrapper struct {
	// in:body
	Body []models.Complaint
}

// swagger:route GET /api/v1/complaints/{complaint_id} complaints complaintByID
// Gets a single complaint by ID.
// responses:
//   200: complaintResponse

// Shows a single complaint by the given {ID}
// swagger:response complaintResponse
type complaintResponseWrapper struct {
	// in:body
	Body models.Complaint
}

// swagger:route GET /api/v1/dashboard dashboard dashboardView
// Gets the caller's dashboard snapshot. The same view is pushed over /api/v1/ws/dashboard.
// responses:
//   200: dashboardResponse

// One complete dashboard snapshot
// swagger:response dashboardResponse
type dashboardResponseWrapper struct {
	// in:body
	Body handlers.DashboardView
}

// swagger:route GET /api/v1/events events listEvents
// Lists volunteer events by date.
// responses:
//   200: eventsResponse

// Volunteer events, soonest first
// swagger:response eventsResponse
type eventsResponseWrapper struct {
	// in:body
	Body []models.VolunteerEvent
}
