package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL 设备令牌默认有效期
const DefaultTokenTTL = 24 * time.Hour

var ErrEmptySecret = errors.New("auth secret is empty")

// AuthToken HS256设备令牌的签发与校验
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewAuthToken 创建令牌工具，密钥不能为空
func NewAuthToken(secretKey string) (*AuthToken, error) {
	if secretKey == "" {
		return nil, ErrEmptySecret
	}
	return &AuthToken{secretKey: []byte(secretKey), ttl: DefaultTokenTTL}, nil
}

// WithTTL 修改签发令牌的有效期
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	at.ttl = ttl
	return at
}

// GenerateToken 为设备签发令牌
func (at *AuthToken) GenerateToken(deviceID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"device_id": deviceID,
		"exp":       now.Add(at.ttl).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken 校验令牌并返回设备ID
func (at *AuthToken) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	deviceID, ok := claims["device_id"].(string)
	if !ok || deviceID == "" {
		return "", errors.New("invalid device_id in claims")
	}
	return deviceID, nil
}
