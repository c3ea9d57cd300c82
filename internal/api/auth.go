package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nhassan/fieldops/internal/models"
	"github.com/nhassan/fieldops/internal/session"
)

// AuthService talks to the backend's token-issuing endpoints. It carries
// no credentials of its own; login and refresh are the only calls the
// client ever makes unauthenticated.
type AuthService struct {
	baseURL string
	http    *http.Client
}

// AuthOpts holds parameters for creating an AuthService.
type AuthOpts struct {
	BaseURL    string
	HTTPClient *http.Client // optional; defaults to a DefaultTimeout client
}

// NewAuthService creates an AuthService.
func NewAuthService(opts AuthOpts) (*AuthService, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &AuthService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
	}, nil
}

// LoginResult is the credential exchange response. The login endpoint
// returns tokens and the caller's profile in one flat payload.
type LoginResult struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Expires      int64          `json:"expires"`
	Profile      models.Profile `json:"profile"`
}

// User flattens the login profile into the session identity the rest of
// the client carries.
func (r *LoginResult) User() models.User {
	u := r.Profile.User
	u.MobileNumber = r.Profile.MobileNumber
	u.Unit = r.Profile.Unit
	u.ProfileID = r.Profile.ID
	return u
}

// Login exchanges a mobile number and password for tokens and a profile.
func (a *AuthService) Login(ctx context.Context, mobileNumber, password string) (*LoginResult, error) {
	body, _ := json.Marshal(map[string]string{
		"mobile_number": mobileNumber,
		"password":      password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/custom-login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("api: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, requestErrorf(0, "login: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestErrorf(resp.StatusCode, "login: read response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, requestErrorf(resp.StatusCode, "login rejected")
	}

	var result LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, requestErrorf(resp.StatusCode, "login: malformed response: %v", err)
	}
	if result.AccessToken == "" || result.Profile.User.Role.Name == "" {
		return nil, requestErrorf(resp.StatusCode, "login: incomplete response")
	}
	return &result, nil
}

// RefreshTokens exchanges a refresh token for a new token pair. It
// implements session.TokenRefresher.
func (a *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	body, _ := json.Marshal(map[string]string{
		"refresh_token": refreshToken,
		"mode":          "json",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("api: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("api: refresh: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.TokenPair{}, fmt.Errorf("api: refresh: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.TokenPair{}, fmt.Errorf("api: refresh rejected (%d)", resp.StatusCode)
	}

	var env struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return session.TokenPair{}, fmt.Errorf("api: refresh: malformed response: %w", err)
	}
	if env.Data.AccessToken == "" {
		return session.TokenPair{}, fmt.Errorf("api: refresh: no access token in response")
	}
	return session.TokenPair{
		AccessToken:  env.Data.AccessToken,
		RefreshToken: env.Data.RefreshToken,
	}, nil
}
