package remote

import "net/http"

// headerTransport sets the authentication and versioning headers of every
// request.
type headerTransport struct {
	Transport http.RoundTripper
	Token     string
	Version   string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.Token)
	req.Header.Set("Notion-Version", t.Version)
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.transport().RoundTrip(req)
}

func (t *headerTransport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}
