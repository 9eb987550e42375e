package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/api/handlers"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/databases/mocks"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

type streamFixture struct {
	server   *httptest.Server
	notifier *realtime.LocalNotifier
	provider *session.Provider
	metrics  *api.Metrics
	token    string
}

func newStreamFixture(t *testing.T) *streamFixture {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := &models.User{ID: primitive.NewObjectID(), Name: "Admin", Email: "admin@example.com", Password: string(hash), Role: models.RoleAdmin}

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, bson.M{"email": "admin@example.com"}).Return(admin, nil)
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.User{}, nil)
	cdb := &mocks.ComplaintDatabase{}
	cdb.On("Find", mock.Anything, mock.Anything).Return([]models.Complaint{{Status: models.StatusSubmitted}}, nil)

	p, err := session.NewProvider(udb, "test-secret", time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	reg := session.NewRegistry()
	changes, stop := p.Changes()
	t.Cleanup(stop)
	go reg.Run(ctx, changes)

	f := &streamFixture{notifier: realtime.NewLocalNotifier(), provider: p, metrics: api.NewMetrics("test")}
	s := handlers.Stream{
		Dashboard: handlers.Dashboard{Complaints: cdb, Events: &mocks.EventDatabase{}, Users: udb},
		Auth:      api.NewAuth(ctx, p, reg, time.Hour),
		Registry:  reg,
		Notifier:  f.notifier,
		Metrics:   f.metrics,
	}
	f.server = httptest.NewServer(http.HandlerFunc(s.DashboardStreamHandler))
	t.Cleanup(f.server.Close)

	sess, err := p.Authenticate(context.Background(), "admin@example.com", "secret1")
	require.NoError(t, err)
	f.token = sess.Token
	return f
}

func (f *streamFixture) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/ws/dashboard?token=" + token
	return websocket.DefaultDialer.Dial(u, nil)
}

type streamEnvelope struct {
	Event string                 `json:"event"`
	Data  handlers.DashboardView `json:"data"`
}

func readSnapshot(t *testing.T, conn *websocket.Conn) streamEnvelope {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg streamEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStream_PushesSnapshotOnConnectAndChange(t *testing.T) {
	f := newStreamFixture(t)
	conn, _, err := f.dial(t, f.token)
	require.NoError(t, err)
	defer conn.Close()

	first := readSnapshot(t, conn)
	assert.Equal(t, "dashboard", first.Event)
	assert.Equal(t, models.RoleAdmin, first.Data.Role)
	assert.Equal(t, 1, first.Data.Stats.Total)

	require.NoError(t, f.notifier.Publish(context.Background(), databases.ComplaintCollection))
	second := readSnapshot(t, conn)
	assert.Equal(t, "dashboard", second.Event)
	assert.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.WSSnapshotsTotal), 2.0)
}

func TestStream_ClosesOnSignOut(t *testing.T) {
	f := newStreamFixture(t)
	conn, _, err := f.dial(t, f.token)
	require.NoError(t, err)
	defer conn.Close()
	readSnapshot(t, conn)

	require.NoError(t, f.provider.SignOut(f.token))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestStream_RejectsBadToken(t *testing.T) {
	f := newStreamFixture(t)
	_, resp, err := f.dial(t, "not-a-token")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
