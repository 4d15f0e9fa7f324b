package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims are the fields this service reads out of the upstream access token.
// The token is issued and verified by the marketplace API; here it is only
// decoded, never verified.
type Claims struct {
	Username  string
	Role      int
	KYCDone   bool
	ExpiresAt time.Time
}

// ErrMalformedToken marks a token that could not be decoded.
var ErrMalformedToken = errors.New("malformed token")

// DecodeToken extracts the claims used for session bookkeeping without
// signature verification.
func DecodeToken(raw string) (Claims, error) {
	tok, err := jwt.ParseString(raw, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	c := Claims{ExpiresAt: tok.Expiration()}
	if v, ok := tok.Get("username"); ok {
		if s, ok := v.(string); ok {
			c.Username = s
		}
	}
	if c.Username == "" {
		c.Username = tok.Subject()
	}
	if v, ok := tok.Get("role"); ok {
		c.Role = toInt(v)
	}
	if v, ok := tok.Get("kyc_done"); ok {
		if b, ok := v.(bool); ok {
			c.KYCDone = b
		}
	}
	if c.ExpiresAt.IsZero() {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrMalformedToken)
	}
	return c, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
