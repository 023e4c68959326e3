// Package auth verifies OpenID Connect bearer tokens issued to API callers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/coreos/go-oidc"
)

// Claims are the parts of a verified token the service acts on.
type Claims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return c != nil && slices.Contains(c.Scopes, scope)
}

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// OIDCVerifier verifies tokens signed by an OpenID Connect provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// New discovers the provider at issuer and prepares a verifier for its
// access tokens. An empty audience skips the audience check, since access
// tokens often carry an API audience rather than a client id.
func New(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	if issuer == "" {
		return nil, errors.New("auth issuer is not configured")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider %s: %w", issuer, err)
	}
	return NewVerifier(provider.Verifier(&oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})), nil
}

// NewVerifier wraps an existing go-oidc verifier.
func NewVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

// Verify checks the signature, issuer, audience and expiry of rawToken.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if token.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	var raw struct {
		Scope string          `json:"scope"`
		Scp   json.RawMessage `json:"scp"`
	}
	if err := token.Claims(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return &Claims{Subject: token.Subject, Scopes: parseScopes(raw.Scope, raw.Scp)}, nil
}

// parseScopes reads the space separated "scope" claim and the "scp" claim,
// which providers send either as a list or as a string.
func parseScopes(scope string, scp json.RawMessage) []string {
	scopes := strings.Fields(scope)
	if len(scp) > 0 {
		var list []string
		if err := json.Unmarshal(scp, &list); err == nil {
			scopes = append(scopes, list...)
		} else {
			var s string
			if err := json.Unmarshal(scp, &s); err == nil {
				scopes = append(scopes, strings.Fields(s)...)
			}
		}
	}
	slices.Sort(scopes)
	return slices.Compact(scopes)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
