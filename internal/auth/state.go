package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidState = errors.New("invalid sign-in state")

// stateClaims binds an OAuth state parameter to one pending challenge.
type stateClaims struct {
	jwt.RegisteredClaims
	ChallengeID string `json:"cid"`
}

type stateSigner struct {
	key []byte
	now func() time.Time
}

func newStateSigner(key []byte) (*stateSigner, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate state key: %w", err)
		}
	}
	return &stateSigner{key: key, now: time.Now}, nil
}

func (s *stateSigner) Sign(challengeID string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ChallengeID: challengeID,
	})
	return token.SignedString(s.key)
}

// Verify returns the challenge id carried by a valid, unexpired state.
func (s *stateSigner) Verify(state string) (string, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidState, err)
	}
	if !token.Valid || claims.ChallengeID == "" {
		return "", errInvalidState
	}
	return claims.ChallengeID, nil
}
