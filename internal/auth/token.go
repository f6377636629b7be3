package auth

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopmonkeyus/tablekit/internal"
)

type userClaims struct {
	Name        string   `json:"name,omitempty"`
	SysAdmin    bool     `json:"sysadmin,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// UserFromToken parses an HS256 signed token into the acting user. The subject holds the user id.
func UserFromToken(token string, key []byte) (*internal.User, error) {
	var claims userClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "error parsing user token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid token subject: %s", claims.Subject)
	}
	return &internal.User{
		ID:          id,
		Name:        claims.Name,
		IsSysAdmin:  claims.SysAdmin,
		Permissions: claims.Permissions,
	}, nil
}

// NewToken signs a token for the user which expires after ttl.
func NewToken(user internal.User, key []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := userClaims{
		Name:        user.Name,
		SysAdmin:    user.IsSysAdmin,
		Permissions: user.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
