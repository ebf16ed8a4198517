package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/timepledge/timepledge/src/internal/config"
	"github.com/timepledge/timepledge/src/internal/domain"
)

// OIDCIdentity verifies bearer ID tokens against the configured provider.
// It implements ports.Identity: a token whose email_verified claim is
// false yields an unverified principal, which the daemon treats exactly
// like no authentication at all.
type OIDCIdentity struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCIdentity(oidcCfg config.OIDCConfig) *OIDCIdentity {
	if oidcCfg.ProviderURL == "" {
		log.Println("WARNING: OIDC Provider URL not set. Auth will be disabled (or broken if required).")
		return &OIDCIdentity{}
	}

	ctx := context.Background()
	provider, err := oidc.NewProvider(ctx, oidcCfg.ProviderURL)
	if err != nil {
		// Don't crash, just log error and fail later if auth is used
		log.Printf("Failed to query OIDC provider: %v", err)
		return &OIDCIdentity{}
	}

	// For Access Tokens, we often need to skip ClientID check as 'aud' might not match client_id
	oidcConfig := &oidc.Config{
		ClientID:          oidcCfg.ClientID,
		SkipClientIDCheck: true,
	}

	return &OIDCIdentity{verifier: provider.Verifier(oidcConfig)}
}

func (m *OIDCIdentity) Verify(ctx context.Context, rawToken string) (*domain.Principal, error) {
	if m.verifier == nil {
		return nil, errors.New("OIDC not configured")
	}

	idToken, err := m.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	return &domain.Principal{
		UserID:   idToken.Subject,
		Email:    claims.Email,
		Verified: claims.EmailVerified,
	}, nil
}

// bearerToken pulls the raw token out of the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
