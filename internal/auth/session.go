// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying session tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
)

// SessionClaims is what a resume token carries: which session, which seat
// (by stable name), and a unique token id so the durable store can revoke it.
type SessionClaims struct {
	SessionID uuid.UUID
	SeatName  string
	TokenID   uuid.UUID
}

// Init generates a fresh ed25519 key pair at runtime. Tokens do not survive
// a process restart unless InitFromPath is used.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
}

// InitFromPath reads ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return nil
}

// CreateSessionToken mints a signed resume token for one seat in one
// session, valid for ttl.
func CreateSessionToken(sessionID uuid.UUID, seatName string, ttl time.Duration) (string, SessionClaims, error) {
	sc := SessionClaims{
		SessionID: sessionID,
		SeatName:  seatName,
		TokenID:   uuid.New(),
	}
	claims := jwt.MapClaims{
		"gid": sessionID.String(),
		"sub": seatName,
		"jti": sc.TokenID.String(),
		"iat": time.Now().Unix(),
	}
	if ttl != 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", SessionClaims{}, err
	}
	return signed, sc, nil
}

// AuthenticateSessionToken verifies a resume token and returns its claims.
func AuthenticateSessionToken(tokenString string) (SessionClaims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return SessionClaims{}, fmt.Errorf("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, fmt.Errorf("invalid jwt claims")
	}

	gidStr, ok := claims["gid"].(string)
	if !ok {
		return SessionClaims{}, fmt.Errorf("missing gid in jwt")
	}
	gid, err := uuid.Parse(gidStr)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("malformed gid in jwt: %w", err)
	}
	seat, ok := claims["sub"].(string)
	if !ok || seat == "" {
		return SessionClaims{}, fmt.Errorf("missing sub in jwt")
	}
	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return SessionClaims{}, fmt.Errorf("missing jti in jwt")
	}
	jti, err := uuid.Parse(jtiStr)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("malformed jti in jwt: %w", err)
	}

	return SessionClaims{SessionID: gid, SeatName: seat, TokenID: jti}, nil
}
