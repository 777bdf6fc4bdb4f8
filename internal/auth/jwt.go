package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	// AdminTokenTTL is the lifetime of admin tokens
	AdminTokenTTL = 12 * time.Hour

	adminIssuer = "devclip"
)

// AuthType distinguishes interactive logins from tokens minted by the CLI
type AuthType string

const (
	AuthTypePassword AuthType = "password"
	AuthTypeService  AuthType = "service"
)

// AdminClaims are the claims of an admin JWT
type AdminClaims struct {
	AdminID  string   `json:"admin_id"`
	Roles    []string `json:"roles"`
	AuthType AuthType `json:"auth_type"`
	jwt.RegisteredClaims
}

// GenerateAdminJWT signs an admin token valid for ttl
func GenerateAdminJWT(adminID string, roles []Role, authType AuthType, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("JWT secret is not configured")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, r.String())
	}

	claims := AdminClaims{
		AdminID:  adminID,
		Roles:    roleNames,
		AuthType: authType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			Issuer:    adminIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAdminJWT verifies signature, algorithm and expiry of an admin token
func ValidateAdminJWT(tokenString string, secret []byte) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Issuer != adminIssuer {
		return nil, errors.New("invalid token issuer")
	}
	return claims, nil
}

// Login checks the admin password against its bcrypt hash and returns an
// admin token on success
func Login(password, passwordHash string, secret []byte) (string, time.Time, error) {
	if err := CheckPassword(passwordHash, password); err != nil {
		return "", time.Time{}, err
	}
	return GenerateAdminJWT("admin", []Role{RoleAdmin}, AuthTypePassword, secret, AdminTokenTTL)
}
