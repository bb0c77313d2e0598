package utils // package utils provides helper functions for token creation

import (
    "strconv" // subject ids are carried as decimal strings
    "time"    // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Roles carried in the "role" claim.
const (
    RoleClient = "CLIENT"
    RoleAdmin  = "ADMIN"
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT.  For the CLIENT role the
// subject is the client id; for ADMIN it identifies the operator.  Login
// flows live outside this service, so tokens are minted by the `token`
// command or by whatever identity provider shares the secret.
func NewAccessToken(secret string, subject uint64, role string, ttlMin int) (AccessToken, error) {
    if ttlMin <= 0 {
        ttlMin = 60
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  strconv.FormatUint(subject, 10),
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
