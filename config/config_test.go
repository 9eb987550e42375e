package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("MEDIA_PROVIDER", "MinIO")
	t.Setenv("MINIO_USE_SSL", "false")
	t.Setenv("ADMIN_EMAIL", "admin@swachhsnap.in")
	t.Setenv("ADMIN_NAME", "")
	conf := New()

	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.Equal(t, 2*time.Hour, conf.TokenTTL)
	assert.Equal(t, "minio", conf.Media.Provider)
	assert.False(t, conf.Minio.UseSSL)
	assert.Equal(t, "admin@swachhsnap.in", conf.Admin.Email)
	assert.Equal(t, "Municipal Admin", conf.Admin.Name)
}

func TestNewDefaults(t *testing.T) {
	os.Unsetenv("PORT")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	conf := New()

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, 30*time.Second, conf.RequestTimeout)
	assert.Equal(t, "0 3 * * *", conf.DigestSchedule)
	assert.Equal(t, int64(10<<20), conf.Media.MaxBytes)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"response": "error it borked, bad request"}`, rr.Body.String())
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
