package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mfenderov/ledgerkit/internal/credstore"
)

// bearerTransport reads the credential before every request and sets
// "Authorization: Bearer <credential>" when one is stored. A stored empty
// value counts as absent. Requests that leave the base address, such as
// redirect hops to another host, go out without the credential.
type bearerTransport struct {
	base   http.RoundTripper
	origin *url.URL
	creds  credstore.Getter
	key    string
	logger *log.Logger
}

func (t *bearerTransport) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, t.origin.Scheme) && strings.EqualFold(u.Host, t.origin.Host)
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.sameOrigin(req.URL) {
		t.logger.Debug("Sending request to foreign host without credential", "method", req.Method, "url", req.URL.Redacted())
		return t.base.RoundTrip(req)
	}

	token, ok, err := t.creds.Get(req.Context(), t.key)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCredentialLookup, t.key, err)
	}

	if !ok || token == "" {
		t.logger.Debug("Sending request without credential", "method", req.Method, "url", req.URL.Redacted())
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	t.logger.Debug("Sending request", "method", req.Method, "url", req.URL.Redacted())
	return t.base.RoundTrip(r)
}
