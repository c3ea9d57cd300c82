// Package session owns the authenticated identity: who is logged in, with
// which tokens, persisted across process restarts through the keystore.
// All credential reads and writes in the rest of the program go through a
// Manager; no other component touches the keystore directly.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nhassan/fieldops/internal/keystore"
	"github.com/nhassan/fieldops/internal/models"
	"golang.org/x/sync/singleflight"
)

// Keystore entry names. These match the keys the mobile client stored, so
// an existing credential database restores cleanly.
const (
	keyAccessToken  = "access_token"
	keyUserInfo     = "user_info"
	keyRefreshToken = "refresh_token"
)

var (
	// ErrNoRefreshToken means a refresh was requested with nothing to
	// exchange. Callers treat it the same as a rejected refresh.
	ErrNoRefreshToken = errors.New("session: no refresh token stored")

	// ErrRefreshRejected means the backend refused the refresh token or
	// the session has no identity to refresh for.
	ErrRefreshRejected = errors.New("session: refresh rejected")
)

// TokenPair is an access/refresh token set issued by the backend.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenRefresher exchanges a refresh token for a new token pair. The api
// package's AuthService implements it.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (TokenPair, error)
}

// Manager is the single source of truth for the local session. The user
// and access token are set and cleared together; the session is never
// half-authenticated from a reader's point of view.
type Manager struct {
	store     *keystore.Store
	refresher TokenRefresher

	group singleflight.Group

	mu           sync.RWMutex
	user         *models.User
	accessToken  string
	refreshToken string
	loading      bool
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Store     *keystore.Store
	Refresher TokenRefresher // optional; Refresh fails without one
}

// NewManager creates a Manager. The session starts empty and loading;
// call Restore once at startup.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	return &Manager{
		store:     opts.Store,
		refresher: opts.Refresher,
		loading:   true,
	}, nil
}

// Restore loads any persisted session from the keystore. It never fails:
// a storage error leaves the session logged out. The loading flag is
// cleared on completion either way, so callers gating on Loading() can
// proceed.
func (m *Manager) Restore(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	token, tokenOK, tokenErr := m.store.Get(keyAccessToken)
	userJSON, userOK, userErr := m.store.Get(keyUserInfo)
	refresh, refreshOK, refreshErr := m.store.Get(keyRefreshToken)
	if tokenErr != nil || userErr != nil || refreshErr != nil {
		log.Printf("session: restore failed, treating as logged out: %v %v %v", tokenErr, userErr, refreshErr)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A lone refresh token is kept so a later Refresh can recover the
	// session, but user+access only populate together.
	if refreshOK {
		m.refreshToken = refresh
	}
	if tokenOK && userOK {
		var user models.User
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			log.Printf("session: restore: stored user unreadable: %v", err)
			return
		}
		m.user = &user
		m.accessToken = token
	}
}

// Login persists the identity and both tokens, then adopts them in memory.
// If any persist fails the in-memory session is left untouched and the
// error returned, so memory never gets ahead of storage.
func (m *Manager) Login(ctx context.Context, user models.User, accessToken, refreshToken string) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: marshal user: %w", err)
	}
	if err := m.store.Set(keyAccessToken, accessToken); err != nil {
		return err
	}
	if err := m.store.Set(keyUserInfo, string(userJSON)); err != nil {
		return err
	}
	if err := m.store.Set(keyRefreshToken, refreshToken); err != nil {
		return err
	}

	m.mu.Lock()
	m.user = &user
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.mu.Unlock()
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair and
// adopts it. staleToken identifies the expiry event: when it is non-empty
// and the current access token no longer matches, another caller already
// refreshed and this call returns nil without touching the backend.
// Concurrent callers racing on the same expiry share a single exchange
// and observe the same outcome.
func (m *Manager) Refresh(ctx context.Context, staleToken string) error {
	if staleToken != "" && m.AccessToken() != staleToken {
		return nil
	}
	_, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		if staleToken != "" && m.AccessToken() != staleToken {
			return nil, nil
		}
		return nil, m.doRefresh(ctx)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context) error {
	m.mu.RLock()
	user := m.user
	refresh := m.refreshToken
	m.mu.RUnlock()

	if refresh == "" {
		return ErrNoRefreshToken
	}
	// A refresh with no known identity cannot produce a whole session.
	if user == nil {
		return ErrRefreshRejected
	}
	if m.refresher == nil {
		return fmt.Errorf("session: no refresher configured")
	}

	pair, err := m.refresher.RefreshTokens(ctx, refresh)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}
	if pair.RefreshToken == "" {
		// Backend kept the old refresh token.
		pair.RefreshToken = refresh
	}

	if err := m.Login(ctx, *user, pair.AccessToken, pair.RefreshToken); err != nil {
		return err
	}
	log.Printf("session: refreshed access token for user %s", user.ID)
	return nil
}

// Logout clears the stored credentials and resets the in-memory session.
// Storage deletions are best effort; Logout never fails the caller.
func (m *Manager) Logout(ctx context.Context) {
	for _, key := range []string{keyAccessToken, keyUserInfo, keyRefreshToken} {
		if err := m.store.Delete(key); err != nil {
			log.Printf("session: logout: delete %s: %v", key, err)
		}
	}

	m.mu.Lock()
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.mu.Unlock()
}

// AccessToken returns the current access token, or "" when logged out.
// It never touches storage.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// CurrentUser returns the logged-in user, or nil.
func (m *Manager) CurrentUser() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Loading reports whether the initial Restore is still pending. Screens
// that require auth wait on this instead of flashing a login redirect.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// Invalidate force-logs-out the session. It exists so the api package can
// signal expiry through its TokenSource interface without importing this
// package's concrete type semantics.
func (m *Manager) Invalidate(ctx context.Context) {
	m.Logout(ctx)
}
