// Package auth applies provider credentials to outgoing requests.
package auth

import (
	"fmt"
	"net/http"

	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/pkg/utils"
)

const (
	HeaderClientID      = "client_id"
	HeaderClientSecret  = "client_secret"
	HeaderApplicationID = "application-id"

	describePrefix = 8
)

// Credentials is one client id/secret pair for a remote service.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	ApplicationID string
}

// Complete reports whether both halves of the pair are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Describe identifies the credential set for logs and errors without
// revealing it.
func (c Credentials) Describe() string {
	if c.ClientID == "" {
		return "client id <none>"
	}
	return "client id " + utils.Prefix(c.ClientID, describePrefix)
}

// Apply sets the provider headers on h. The application id header is only
// sent when configured.
func (c Credentials) Apply(h http.Header) {
	h.Set(HeaderClientID, c.ClientID)
	h.Set(HeaderClientSecret, c.ClientSecret)
	if c.ApplicationID != "" {
		h.Set(HeaderApplicationID, c.ApplicationID)
	}
}

// Chain is the primary credential set plus an optional fallback that is
// tried only after the primary is rejected with 401.
type Chain struct {
	Primary  Credentials
	Fallback *Credentials
}

// Require fails with ErrConfiguration when the primary pair is incomplete.
func (c Chain) Require(service string) error {
	if c.Primary.Complete() {
		return nil
	}
	var missing []string
	if c.Primary.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.Primary.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	return fmt.Errorf("%w: %s credentials missing %v", e.ErrConfiguration, service, missing)
}

func (c Chain) attempts() []Credentials {
	out := []Credentials{c.Primary}
	if c.Fallback != nil && c.Fallback.Complete() {
		out = append(out, *c.Fallback)
	}
	return out
}
