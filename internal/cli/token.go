package cli

import (
	"fmt"
	"io"
	"time"

	"ride-driver/internal/general/jwt"
)

// GenerateDriverToken mints a driver JWT for local development against
// the dispatch backends. Not for production code paths.
func GenerateDriverToken(secret, driverID string, ttl time.Duration) (string, jwt.Claims, error) {
	mgr, err := jwt.NewManager(secret, ttl)
	if err != nil {
		return "", jwt.Claims{}, err
	}
	token, claims, err := mgr.IssueDriverToken(driverID)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}
	return token, *claims, nil
}

// PrintToken writes the token followed by a short claims summary.
func PrintToken(w io.Writer, token string, claims jwt.Claims) {
	fmt.Fprintln(w, "TOKEN:")
	fmt.Fprintln(w, token)
	fmt.Fprintln(w, "\nCLAIMS:")
	fmt.Fprintf(w, "  sub:  %s\n", claims.Subject)
	fmt.Fprintf(w, "  role: %s\n", claims.Role)
	fmt.Fprintf(w, "  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
