package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	DeviceID string `json:"device_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role"` // "device" or "dashboard"
	jwt.RegisteredClaims
}

const (
	RoleDevice    = "device"
	RoleDashboard = "dashboard"
)

var errInvalidToken = errors.New("invalid token")

// secret returns the signing key. JWT_SECRET must be set in production;
// the fallback keeps local development running.
func secret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("lumen-dev-secret")
}

// GenerateDeviceToken generates a JWT token for device authentication.
// userID ties the connection to the wearer of the glasses.
func GenerateDeviceToken(deviceID, userID string) (string, error) {
	claims := &JWTClaims{
		DeviceID: deviceID,
		UserID:   userID,
		Role:     RoleDevice,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// GenerateDashboardToken generates a JWT token for dashboard access
func GenerateDashboardToken(userID string) (string, error) {
	claims := &JWTClaims{
		UserID: userID,
		Role:   RoleDashboard,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)), // 7 days
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return secret(), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errInvalidToken
}
