package firebase

import (
	"time"

	firebaseAuth "firebase.google.com/go/v4/auth"
)

// Claims are the verified claims of a Firebase ID token.
type Claims struct {
	Subject        string         `json:"sub"`
	Email          string         `json:"email,omitempty"`
	EmailVerified  bool           `json:"email_verified,omitempty"`
	Name           string         `json:"name,omitempty"`
	Picture        string         `json:"picture,omitempty"`
	PhoneNumber    string         `json:"phone_number,omitempty"`
	SignInProvider string         `json:"sign_in_provider,omitempty"`
	Tenant         string         `json:"tenant,omitempty"`
	IssuedAt       time.Time      `json:"iat"`
	ExpiresAt      time.Time      `json:"exp"`
	AuthTime       time.Time      `json:"auth_time"`
	Issuer         string         `json:"iss"`
	Audience       string         `json:"aud"`
	CustomClaims   map[string]any `json:"custom_claims,omitempty"`
}

// Expired reports whether the claims have expired at now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

var standardClaims = map[string]bool{
	"iss": true, "aud": true, "exp": true, "iat": true, "sub": true,
	"auth_time": true, "user_id": true, "email": true, "email_verified": true,
	"name": true, "picture": true, "firebase": true, "phone_number": true,
}

func claimsFromToken(token *firebaseAuth.Token) *Claims {
	c := &Claims{
		Subject:        token.UID,
		SignInProvider: token.Firebase.SignInProvider,
		Tenant:         token.Firebase.Tenant,
		IssuedAt:       time.Unix(token.IssuedAt, 0),
		ExpiresAt:      time.Unix(token.Expires, 0),
		Issuer:         token.Issuer,
		Audience:       token.Audience,
	}
	if token.AuthTime > 0 {
		c.AuthTime = time.Unix(token.AuthTime, 0)
	}

	c.Email, _ = stringClaim(token.Claims, "email")
	c.EmailVerified, _ = boolClaim(token.Claims, "email_verified")
	c.Name, _ = stringClaim(token.Claims, "name")
	c.Picture, _ = stringClaim(token.Claims, "picture")
	c.PhoneNumber, _ = stringClaim(token.Claims, "phone_number")

	for key, value := range token.Claims {
		if standardClaims[key] {
			continue
		}
		if c.CustomClaims == nil {
			c.CustomClaims = make(map[string]any)
		}
		c.CustomClaims[key] = value
	}
	return c
}

func stringClaim(claims map[string]any, key string) (string, bool) {
	s, ok := claims[key].(string)
	return s, ok
}

func boolClaim(claims map[string]any, key string) (bool, bool) {
	b, ok := claims[key].(bool)
	return b, ok
}
