package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtAlgorithm = jwt.SigningMethodHS256

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and verifies operator tokens and organization API keys
type Service struct {
	jwtSecret    []byte
	masterSecret []byte
	cost         int
	tokenTTL     time.Duration
}

// New creates an auth service from configured secrets
func New(cfg config.AuthConfig) *Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		jwtSecret:    []byte(cfg.JWTSecret),
		masterSecret: []byte(cfg.MasterSecret),
		cost:         cost,
		tokenTTL:     ttl,
	}
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for an operator
func (s *Service) CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken verifies a JWT token
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// EnsureAdminExists creates the configured operator account when no operator exists.
func (s *Service) EnsureAdminExists(db *gorm.DB, username, password string, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logger.Info("default admin user created", zap.String("username", username))
	return nil
}

// GenerateHMACKey creates a signed API key for an organization using HMAC-SHA256
func (s *Service) GenerateHMACKey(orgID string) string {
	return orgID + "." + s.sign(orgID)
}

// VerifyHMACKey validates an HMAC-signed API key and returns its organization id
func (s *Service) VerifyHMACKey(key string) (string, error) {
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return "", ErrInvalidKeyFormat
	}

	orgID := key[:i]
	providedSignature := key[i+1:]

	// constant-time comparison
	if !hmac.Equal([]byte(providedSignature), []byte(s.sign(orgID))) {
		return "", ErrInvalidSignature
	}

	return orgID, nil
}

func (s *Service) sign(orgID string) string {
	h := hmac.New(sha256.New, s.masterSecret)
	h.Write([]byte(orgID))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyPreview is the displayable prefix of a key
func KeyPreview(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12] + "..."
}
