package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"ato_controller/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 12 * time.Hour

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
	// ErrSignUpClosed is returned once the first operator exists and open
	// sign-up is off.
	ErrSignUpClosed = errors.New("sign-up is closed")
)

// AuthService handles operator auth logic
type AuthService struct {
	authRepo   repository.Authorization
	signingKey []byte
	tokenTTL   time.Duration
	openSignUp bool
}

// AuthOption tunes an AuthService.
type AuthOption func(*AuthService)

// OpenSignUp lets anyone create further accounts. Without it only the first
// operator can sign up; the device is usually set up once on the bench.
func OpenSignUp(open bool) AuthOption {
	return func(s *AuthService) { s.openSignUp = open }
}

// NewAuthService signs tokens with key. An empty key is replaced by a random
// one, which invalidates issued tokens on every restart.
func NewAuthService(repo repository.Authorization, key string, ttl time.Duration, opts ...AuthOption) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	sk := []byte(key)
	if len(sk) == 0 {
		sk = make([]byte, 32)
		_, _ = rand.Read(sk)
	}
	s := &AuthService{authRepo: repo, signingKey: sk, tokenTTL: ttl}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignUp hashes password and creates a new user
func (s *AuthService) SignUp(username, password string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is empty")
	}
	if !s.openSignUp {
		n, err := s.authRepo.Count()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, ErrSignUpClosed
		}
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("invalid password: %w", err)
	}
	return s.authRepo.Create(username, hash)
}

// SignUpOpen reports whether SignUp would currently accept a new operator.
func (s *AuthService) SignUpOpen() (bool, error) {
	if s.openSignUp {
		return true, nil
	}
	n, err := s.authRepo.Count()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// ChangePassword replaces the password of userID after checking current.
func (s *AuthService) ChangePassword(userID int, current, next string) error {
	u, err := s.authRepo.GetByID(userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	if err := verifyPassword(u.PasswordHash, current); err != nil {
		return ErrInvalidPassword
	}
	hash, err := hashPassword(next)
	if err != nil {
		return fmt.Errorf("invalid new password: %w", err)
	}
	return s.authRepo.UpdatePassword(userID, hash)
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// GenerateToken validates credentials and returns JWT
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	u, err := s.authRepo.GetByUsername(username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}

	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	return s.issueToken(u.ID)
}

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// issueToken signs a JWT for a user
func (s *AuthService) issueToken(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}
