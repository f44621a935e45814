package auth

import (
	"io"
	"net/http"

	"go.uber.org/zap"
)

// RequestFunc builds a fresh request for one attempt. It is called again
// for the fallback attempt since request bodies cannot be replayed.
type RequestFunc func() (*http.Request, error)

// Do sends the request with the primary credentials and, after a 401,
// once more with the fallback set if one is configured. The returned
// Credentials are the set used for the returned response.
func (c Chain) Do(client *http.Client, logger *zap.Logger, build RequestFunc) (*http.Response, Credentials, error) {
	attempts := c.attempts()
	var (
		resp *http.Response
		used Credentials
	)
	for i, creds := range attempts {
		req, err := build()
		if err != nil {
			return nil, creds, err
		}
		creds.Apply(req.Header)
		used = creds

		resp, err = client.Do(req)
		if err != nil {
			return nil, creds, err
		}
		if resp.StatusCode != http.StatusUnauthorized || i == len(attempts)-1 {
			return resp, used, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		logger.Warn("Primary credentials rejected, retrying with fallback",
			zap.String("rejected", creds.Describe()),
			zap.String("url", req.URL.Path),
		)
	}
	return resp, used, nil
}
