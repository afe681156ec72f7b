// ABOUTME: Short-lived JWT challenge tokens for the OTP step-up flow
// ABOUTME: Uses HS256 signing with configurable secret

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Challenge token errors
var (
	ErrInvalidChallenge = errors.New("invalid challenge token")
	ErrExpiredChallenge = errors.New("challenge token expired")
)

// challengeTTL bounds how long a password-verified login may wait for its
// second factor.
const challengeTTL = 5 * time.Minute

const challengePurpose = "otp-stepup"

// ChallengeIssuer mints and verifies the step-up challenge tokens handed out
// when a login passes the password check but the account is second-factor
// flagged. The token references the pending user; redeeming it plus a valid
// OTP completes the login.
type ChallengeIssuer struct {
	secret []byte
}

// NewChallengeIssuer creates a challenge issuer with the given signing secret.
func NewChallengeIssuer(secret []byte) *ChallengeIssuer {
	return &ChallengeIssuer{secret: secret}
}

// Issue creates a challenge token for the given user.
func (c *ChallengeIssuer) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     strconv.FormatInt(userID, 10),
		"purpose": challengePurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(challengeTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify validates a challenge token and extracts the pending user id.
func (c *ChallengeIssuer) Verify(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredChallenge
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}

	if !token.Valid {
		return 0, ErrInvalidChallenge
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidChallenge
	}

	if purpose, _ := claims["purpose"].(string); purpose != challengePurpose {
		return 0, ErrInvalidChallenge
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, ErrInvalidChallenge
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidChallenge)
	}

	return userID, nil
}
