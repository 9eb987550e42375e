package handlers

import (
	"net/http"

	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/media"
)

type uploadSigner interface {
	Sign() (media.SignedUpload, error)
}

// Media exported for testing purposes
type Media struct {
	Signer uploadSigner
}

// SignatureHandler returns signed parameters so a client can upload a photo
// straight to the image host and send back only its url as photoUrl when
// filing a complaint or submitting proof
func (m Media) SignatureHandler(w http.ResponseWriter, r *http.Request) {
	if m.Signer == nil {
		config.ErrorStatus("failed to sign upload", http.StatusServiceUnavailable, w, media.ErrNotConfigured)
		return
	}
	s, err := m.Signer.Sign()
	if err != nil {
		config.ErrorStatus("failed to sign upload", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
