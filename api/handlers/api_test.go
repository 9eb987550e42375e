package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/databases/mocks"
	"github.com/linesmerrill/swachhsnap-api/geo"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

// newTestApp wires an App over mocked collections. The users collection
// answers every lookup with user.
func newTestApp(t *testing.T, user *models.User) *App {
	users := &mocks.CollectionHelper{}
	result := &mocks.SingleResultHelper{}
	if user == nil {
		result.On("Decode", mock.Anything).Return(databases.ErrNotFound)
	} else {
		result.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
			*(args.Get(0).(*models.User)) = *user
		}).Return(nil)
	}
	users.On("FindOne", mock.Anything, mock.Anything).Return(result)

	db := &mocks.DatabaseHelper{}
	db.On("Collection", databases.UserCollection).Return(users)

	p, err := session.NewProvider(databases.NewUserDatabase(db), "test-secret", time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := session.NewRegistry()
	changes, stop := p.Changes()
	t.Cleanup(stop)
	go reg.Run(ctx, changes)

	a := &App{
		Config:     config.Config{RequestTimeout: 5 * time.Second},
		DB:         db,
		Notifier:   realtime.NewLocalNotifier(),
		Provider:   p,
		Registry:   reg,
		Auth:       api.NewAuth(ctx, p, reg, time.Hour),
		Metrics:    api.NewMetrics("test"),
		Classifier: geo.NewClassifier(geo.DefaultZones),
	}
	a.initializeRoutes()
	return a
}

func executeRequest(a *App, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func TestUnknownRoute(t *testing.T) {
	a := newTestApp(t, nil)
	response := executeRequest(a, httptest.NewRequest("GET", "/asdf", nil))

	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	a := newTestApp(t, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		response := executeRequest(a, httptest.NewRequest("GET", path, nil))

		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), "alive")
	}
}

func TestMetricsRoute(t *testing.T) {
	a := newTestApp(t, nil)
	executeRequest(a, httptest.NewRequest("GET", "/api/v1/health", nil))

	response := executeRequest(a, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), `path="/api/v1/health"`)
}

func TestApp_ComplaintsUnauthorized(t *testing.T) {
	a := newTestApp(t, nil)
	response := executeRequest(a, httptest.NewRequest("GET", "/api/v1/complaints", nil))

	assert.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestApp_ComplaintsInvalidToken(t *testing.T) {
	a := newTestApp(t, nil)
	req := httptest.NewRequest("GET", "/api/v1/complaints", nil)
	req.Header.Add("Authorization", "Bearer asdfasdf")
	response := executeRequest(a, req)

	assert.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestApp_SweeperCannotApprove(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	sweeper := &models.User{ID: primitive.NewObjectID(), Name: "Rajesh", Email: "rajesh@example.com", Password: string(hash), Role: models.RoleSweeper}
	a := newTestApp(t, sweeper)

	req := httptest.NewRequest("POST", "/api/v1/auth/token", nil)
	req.SetBasicAuth("rajesh@example.com", "secret1")
	response := executeRequest(a, req)
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	token := response.Body.String()
	token = token[strings.Index(token, `"token":"`)+9:]
	token = token[:strings.Index(token, `"`)]

	req = httptest.NewRequest("PUT", "/api/v1/complaints/"+primitive.NewObjectID().Hex()+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	response = executeRequest(a, req)
	assert.Equal(t, http.StatusForbidden, response.Code)

	req = httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	response = executeRequest(a, req)
	assert.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), `"role":"sweeper"`)
}

func TestApp_MediaSignatureUnconfigured(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	citizen := &models.User{ID: primitive.NewObjectID(), Email: "c@example.com", Password: string(hash), Role: models.RoleCitizen}
	a := newTestApp(t, citizen)

	req := httptest.NewRequest("POST", "/api/v1/media/signature", nil)
	req.SetBasicAuth("c@example.com", "secret1")
	response := executeRequest(a, req)

	assert.Equal(t, http.StatusServiceUnavailable, response.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(databases.ErrStaleState))
	assert.Equal(t, http.StatusNotFound, statusFor(databases.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(media.ErrNotConfigured))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(bodyError(&http.MaxBytesError{Limit: 10})))
	assert.Equal(t, http.StatusBadRequest, statusFor(bodyError(assert.AnError)))
	assert.Equal(t, "ok", outcomeFor(nil))
	assert.Equal(t, "invalid", outcomeFor(errBodyTooLarge))
}

func TestDecodeJSONStopsAtLimit(t *testing.T) {
	var dst struct {
		Name string `json:"name" validate:"required"`
	}
	body := `{"name":"` + strings.Repeat("x", 256) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	err := decodeJSON(httptest.NewRecorder(), req, &dst, 64)
	assert.ErrorIs(t, err, errBodyTooLarge)

	req = httptest.NewRequest("POST", "/", strings.NewReader(body))
	assert.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst, maxJSONBytes))
}

func TestEventsByDateSortsInTheQuery(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "date", Value: 1}}, eventsByDate().Sort)
}
