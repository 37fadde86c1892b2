// internal/api/auth.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"plantframe/internal/errors"
)

// Credentials identify the caller and carry the photo library access token
// forwarded on their behalf.
type Credentials struct {
	UserID    string
	AuthToken string
}

// Provider extracts caller credentials from a request.
type Provider interface {
	Credentials(ctx echo.Context) (Credentials, error)
}

// HeaderProvider reads the user id from the X-User-ID header and the photo
// library token from the Authorization bearer header. Token validation is the
// upstream photo service's job; requests with a bad token fail there with a
// 401 that is passed through.
type HeaderProvider struct{}

// Credentials implements Provider.
func (HeaderProvider) Credentials(ctx echo.Context) (Credentials, error) {
	authHeader := ctx.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return Credentials{}, errors.Newf("missing bearer token").
			Category(errors.CategoryValidation).
			Context("status_code", http.StatusUnauthorized).
			Component("api").
			Build()
	}

	userID := ctx.Request().Header.Get("X-User-ID")
	if userID == "" {
		// A caller without an explicit identity still gets a stable frame
		// keyed by their token.
		userID = token
	}

	return Credentials{UserID: userID, AuthToken: token}, nil
}
