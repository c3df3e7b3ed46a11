package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const deviceTokenTTL = 30 * 24 * time.Hour

// DeviceClaims identify the durable device scope and the ephemeral session (tab) scope.
type DeviceClaims struct {
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateDeviceToken signs a token for the device and session.
func GenerateDeviceToken(secret, deviceID, sessionID string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	now := time.Now()
	claims := DeviceClaims{
		DeviceID:  deviceID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(deviceTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateDeviceToken parses and validates the token
func ValidateDeviceToken(secret, tokenString string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.DeviceID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("invalid device token")
	}
	return claims, nil
}
