package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Error codes the SDK's fetch policy keys on.
const (
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
)

// accountIDKey is the gin context key carrying the authenticated account id.
const accountIDKey = "accountID"

type loginRequest struct {
	MobileNumber string `json:"mobile_number"`
	Password     string `json:"password"`
}

// handleLogin exchanges a mobile number and password for tokens plus the
// caller's expanded profile in one flat payload.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "malformed login payload", "INVALID_PAYLOAD")
		return
	}

	var acct Account
	err := s.db.Where("mobile_number = ?", req.MobileNumber).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(c, http.StatusUnauthorized, "Invalid user credentials.", codeInvalidCredentials)
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "lookup failed", "INTERNAL")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		errorJSON(c, http.StatusUnauthorized, "Invalid user credentials.", codeInvalidCredentials)
		return
	}

	profile := s.profileForAccount(acct.ID)
	if profile == nil {
		errorJSON(c, http.StatusUnauthorized, "no profile for account", codeInvalidCredentials)
		return
	}

	access, err := s.issueAccessToken(acct.ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "token signing failed", "INTERNAL")
		return
	}
	refresh, err := s.issueRefreshToken(acct.ID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "refresh token issue failed", "INTERNAL")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"expires":       s.tokenTTL.Milliseconds(),
		"profile":       profile,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Mode         string `json:"mode"`
}

// handleRefresh rotates a refresh token and issues a fresh token pair.
// A used or unknown token is rejected; rotation makes replay visible.
func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		errorJSON(c, http.StatusBadRequest, "missing refresh token", "INVALID_PAYLOAD")
		return
	}

	var stored RefreshToken
	err := s.db.Where("token = ?", req.RefreshToken).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorJSON(c, http.StatusUnauthorized, "invalid refresh token", codeInvalidToken)
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "lookup failed", "INTERNAL")
		return
	}
	if time.Now().After(stored.ExpiresAt) {
		s.db.Delete(&stored)
		errorJSON(c, http.StatusUnauthorized, "refresh token expired", codeTokenExpired)
		return
	}

	// Rotate: the old token is spent the moment it is exchanged.
	if err := s.db.Delete(&stored).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "rotation failed", "INTERNAL")
		return
	}

	access, err := s.issueAccessToken(stored.AccountID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "token signing failed", "INTERNAL")
		return
	}
	refresh, err := s.issueRefreshToken(stored.AccountID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "refresh token issue failed", "INTERNAL")
		return
	}

	dataJSON(c, http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// issueAccessToken signs a short-lived HS256 JWT for the account.
func (s *Server) issueAccessToken(accountID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// issueRefreshToken stores and returns a new opaque refresh token.
func (s *Server) issueRefreshToken(accountID string) (string, error) {
	tok := RefreshToken{
		Token:     uuid.NewString(),
		AccountID: accountID,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}
	if err := s.db.Create(&tok).Error; err != nil {
		return "", err
	}
	return tok.Token, nil
}

// requireAuth validates the bearer token and stashes the account id on
// the request context. Expired and malformed tokens get the distinct
// error codes the client's retry policy looks for.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		errorJSON(c, http.StatusUnauthorized, "missing bearer token", codeInvalidToken)
		c.Abort()
		return
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		code := codeInvalidToken
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = codeTokenExpired
		}
		errorJSON(c, http.StatusUnauthorized, "token invalid or expired", code)
		c.Abort()
		return
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		errorJSON(c, http.StatusUnauthorized, "token has no subject", codeInvalidToken)
		c.Abort()
		return
	}

	c.Set(accountIDKey, claims.Subject)
	c.Next()
}

// profileForAccount returns the expanded profile document whose user
// relation points at the account, or nil when none exists.
func (s *Server) profileForAccount(accountID string) map[string]any {
	var items []Item
	if err := s.db.Where("collection = ?", "profile").Find(&items).Error; err != nil {
		return nil
	}
	for _, it := range items {
		var doc map[string]any
		if json.Unmarshal([]byte(it.Doc), &doc) != nil {
			continue
		}
		if doc["user"] == accountID {
			doc["id"] = it.ID
			return s.expand("profile", doc, 0)
		}
	}
	return nil
}
