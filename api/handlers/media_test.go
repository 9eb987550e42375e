package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/swachhsnap-api/api/handlers"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
)

type fakeSigner struct {
	err error
}

func (f fakeSigner) Sign() (media.SignedUpload, error) {
	return media.SignedUpload{CloudName: "demo", APIKey: "key", Timestamp: "1700000000", Signature: "abc"}, f.err
}

func TestMedia_SignatureHandler(t *testing.T) {
	m := handlers.Media{Signer: fakeSigner{}}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.SignatureHandler).ServeHTTP(rr, as(httptest.NewRequest("POST", "/", nil), caller(models.RoleCitizen)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cloudName":"demo","apiKey":"key","timestamp":"1700000000","signature":"abc"}`, rr.Body.String())
}

func TestMedia_SignatureHandlerNotConfigured(t *testing.T) {
	rr := httptest.NewRecorder()
	http.HandlerFunc(handlers.Media{}.SignatureHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	http.HandlerFunc(handlers.Media{Signer: fakeSigner{err: errors.New("mocked-error")}}.SignatureHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	rr = httptest.NewRecorder()
	http.HandlerFunc(handlers.Media{Signer: fakeSigner{err: media.ErrNotConfigured}}.SignatureHandler).ServeHTTP(rr, httptest.NewRequest("POST", "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
