// Package auth resolves the bearer credential the messaging client sends and
// issues the tokens the development backend accepts.
package auth

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// Credential is a resolved bearer token.
type Credential struct {
	Token     string
	Role      model.Role
	ExpiresAt *time.Time
}

// Expired reports whether the credential carries an expiry at or before now.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// SessionProvider yields the credential for the next request, if any.
type SessionProvider interface {
	Credential(ctx context.Context) (*Credential, bool)
}

// ProviderFunc adapts a function to SessionProvider.
type ProviderFunc func(ctx context.Context) (*Credential, bool)

// Credential implements SessionProvider.
func (f ProviderFunc) Credential(ctx context.Context) (*Credential, bool) {
	return f(ctx)
}

type chain struct {
	providers []SessionProvider
	now       func() time.Time
}

// Chain tries each provider in order; the first non-empty, unexpired
// credential wins.
func Chain(providers ...SessionProvider) SessionProvider {
	return &chain{providers: providers, now: time.Now}
}

func (c *chain) Credential(ctx context.Context) (*Credential, bool) {
	now := c.now()
	for _, p := range c.providers {
		if p == nil {
			continue
		}
		cred, ok := p.Credential(ctx)
		if !ok || cred == nil || cred.Token == "" || cred.Expired(now) {
			continue
		}
		return cred, true
	}
	return nil, false
}

// Static always yields the same token. An empty token yields nothing.
func Static(token string) SessionProvider {
	token = strings.TrimSpace(token)
	return ProviderFunc(func(context.Context) (*Credential, bool) {
		if token == "" {
			return nil, false
		}
		return FromToken(token), true
	})
}

// EnvStore reads a session token from an environment variable on every call.
func EnvStore(name string) SessionProvider {
	return ProviderFunc(func(context.Context) (*Credential, bool) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return nil, false
		}
		return FromToken(token), true
	})
}

// FromToken builds a credential, reading role and expiry from the token's
// claims when it is a JWT. The signature is not verified; only the server
// can do that.
func FromToken(token string) *Credential {
	cred := &Credential{Token: token}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cred
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		cred.ExpiresAt = &exp
	}
	if claims.Role.Valid() {
		cred.Role = claims.Role
	}
	return cred
}
