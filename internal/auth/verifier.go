package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/worldserver/internal/apperr"
)

// IdentityVerifier is the external collaborator contract: given a bearer
// token, return the verified principal or a classified error. Abstracted
// behind an interface so tests can fake the identity endpoint without a
// live Supabase instance.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// supabaseUser is the shape of a GoTrue /auth/v1/user response, grounded
// on pkg/supabase/client.go's User type (trimmed to the fields the core
// actually needs).
type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SupabaseVerifier calls the external identity endpoint named by the
// core's trust boundary: GET {baseURL}/auth/v1/user with the bearer token
// forwarded. The endpoint is the trust anchor; the token's cryptographic
// signature is never re-verified locally.
type SupabaseVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewSupabaseVerifier builds a verifier against the given Supabase
// project URL (e.g. "https://xyz.supabase.co"), with the 5s timeout
// mandated by the core's concurrency model.
func NewSupabaseVerifier(baseURL string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Verify implements IdentityVerifier.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperr.ErrAuthRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: identity endpoint returned %d", apperr.ErrAuthRejected, resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decode identity response: %v", apperr.ErrAuthRejected, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: identity response missing user id", apperr.ErrAuthRejected)
	}

	role := user.Role
	if role == "" {
		role = "authenticated"
	}

	expiresAt, err := extractExpiry(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthRejected, err)
	}

	return &Principal{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       role,
		ExpiresAt:  expiresAt,
		VerifiedAt: time.Now(),
	}, nil
}

// extractExpiry does a structural-only decode of the JWT to pull the exp
// claim. The signature is deliberately not verified: Supabase already did
// that, and re-verifying locally would diverge from the identity
// endpoint's trust boundary (see the core's design notes on signature
// verification).
func extractExpiry(token string) (int64, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("decode token: %w", err)
	}
	exp, ok := claims["exp"]
	if !ok {
		return 0, fmt.Errorf("token missing exp claim")
	}
	switch v := exp.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid exp claim: %w", err)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unsupported exp claim type %T", exp)
	}
}
