package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhassan/fieldops/internal/keystore"
	"github.com/nhassan/fieldops/internal/models"
)

// mockRefresher implements TokenRefresher with a scripted outcome.
type mockRefresher struct {
	pair  TokenPair
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (m *mockRefresher) RefreshTokens(ctx context.Context, refreshToken string) (TokenPair, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return TokenPair{}, m.err
	}
	return m.pair, nil
}

func openTestStore(t *testing.T) *keystore.Store {
	t.Helper()
	s, err := keystore.OpenInMemory()
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return s
}

func testUser() models.User {
	return models.User{
		ID:           "u-1",
		Email:        "c@example.com",
		FirstName:    "Sara",
		MobileNumber: "0501234567",
		Unit:         "S123",
		Role:         models.Role{Name: "customer"},
		ProfileID:    7,
	}
}

// --- NewManager tests ---

func TestNewManager_NilStore(t *testing.T) {
	_, err := NewManager(ManagerOpts{})
	if err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestNewManager_StartsLoading(t *testing.T) {
	m, err := NewManager(ManagerOpts{Store: openTestStore(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Loading() {
		t.Error("manager should start in loading state")
	}
}

// --- Login / Restore tests ---

func TestLogin_ThenReads(t *testing.T) {
	m, _ := NewManager(ManagerOpts{Store: openTestStore(t)})
	if err := m.Login(context.Background(), testUser(), "abc", "r1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if m.AccessToken() != "abc" {
		t.Errorf("access token = %q, want abc", m.AccessToken())
	}
	u := m.CurrentUser()
	if u == nil || u.ID != "u-1" {
		t.Errorf("current user = %+v, want u-1", u)
	}
}

func TestLogin_ThenRestoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	m1, _ := NewManager(ManagerOpts{Store: store})
	if err := m1.Login(context.Background(), testUser(), "abc", "r1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Simulate process restart: new manager over the same store.
	m2, _ := NewManager(ManagerOpts{Store: store})
	m2.Restore(context.Background())

	if m2.Loading() {
		t.Error("loading should be false after restore")
	}
	if m2.AccessToken() != "abc" {
		t.Errorf("restored token = %q, want abc", m2.AccessToken())
	}
	u := m2.CurrentUser()
	if u == nil || u.ID != "u-1" || u.Role.Name != "customer" {
		t.Errorf("restored user = %+v", u)
	}
}

func TestRestore_EmptyStore(t *testing.T) {
	m, _ := NewManager(ManagerOpts{Store: openTestStore(t)})
	m.Restore(context.Background())
	if m.Loading() {
		t.Error("loading should clear even with nothing stored")
	}
	if m.AccessToken() != "" || m.CurrentUser() != nil {
		t.Error("empty store should restore to logged out")
	}
}

func TestRestore_LoneRefreshToken(t *testing.T) {
	store := openTestStore(t)
	store.Set("refresh_token", "r-only")

	ref := &mockRefresher{pair: TokenPair{AccessToken: "new", RefreshToken: "r2"}}
	m, _ := NewManager(ManagerOpts{Store: store, Refresher: ref})
	m.Restore(context.Background())

	if m.AccessToken() != "" || m.CurrentUser() != nil {
		t.Error("lone refresh token must not produce an authenticated session")
	}
	// Refresh without an identity is unrecoverable.
	err := m.Refresh(context.Background(), "")
	if !errors.Is(err, ErrRefreshRejected) {
		t.Errorf("refresh err = %v, want ErrRefreshRejected", err)
	}
}

func TestRestore_CorruptUserJSON(t *testing.T) {
	store := openTestStore(t)
	store.Set("access_token", "abc")
	store.Set("user_info", "{not json")

	m, _ := NewManager(ManagerOpts{Store: store})
	m.Restore(context.Background())

	if m.AccessToken() != "" || m.CurrentUser() != nil {
		t.Error("unreadable stored user should restore to logged out")
	}
	if m.Loading() {
		t.Error("loading should still clear")
	}
}

// --- Refresh tests ---

func TestRefresh_NoToken(t *testing.T) {
	m, _ := NewManager(ManagerOpts{Store: openTestStore(t)})
	m.Restore(context.Background())
	err := m.Refresh(context.Background(), "")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("err = %v, want ErrNoRefreshToken", err)
	}
}

func TestRefresh_Rejected(t *testing.T) {
	store := openTestStore(t)
	ref := &mockRefresher{err: errors.New("token revoked")}
	m, _ := NewManager(ManagerOpts{Store: store, Refresher: ref})
	m.Login(context.Background(), testUser(), "stale", "r1")

	err := m.Refresh(context.Background(), "")
	if !errors.Is(err, ErrRefreshRejected) {
		t.Errorf("err = %v, want ErrRefreshRejected", err)
	}
	// A failed refresh leaves the session as it was; forcing logout is
	// the fetch policy's call, not ours.
	if m.AccessToken() != "stale" {
		t.Errorf("access token = %q, want stale", m.AccessToken())
	}
}

func TestRefresh_AdoptsAndPersistsNewTokens(t *testing.T) {
	store := openTestStore(t)
	ref := &mockRefresher{pair: TokenPair{AccessToken: "def", RefreshToken: "r2"}}
	m, _ := NewManager(ManagerOpts{Store: store, Refresher: ref})
	m.Login(context.Background(), testUser(), "abc", "r1")

	if err := m.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m.AccessToken() != "def" {
		t.Errorf("access token = %q, want def", m.AccessToken())
	}
	if m.CurrentUser() == nil {
		t.Fatal("user must survive a refresh")
	}

	// New tokens must be durable.
	m2, _ := NewManager(ManagerOpts{Store: store})
	m2.Restore(context.Background())
	if m2.AccessToken() != "def" {
		t.Errorf("restored token = %q, want def", m2.AccessToken())
	}
}

func TestRefresh_KeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	store := openTestStore(t)
	ref := &mockRefresher{pair: TokenPair{AccessToken: "def"}}
	m, _ := NewManager(ManagerOpts{Store: store, Refresher: ref})
	m.Login(context.Background(), testUser(), "abc", "r1")

	if err := m.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v, ok, _ := store.Get("refresh_token")
	if !ok || v != "r1" {
		t.Errorf("refresh token = (%q, %v), want r1 kept", v, ok)
	}
}

func TestRefresh_ConcurrentCallersShareOneExchange(t *testing.T) {
	store := openTestStore(t)
	ref := &mockRefresher{
		pair:  TokenPair{AccessToken: "def", RefreshToken: "r2"},
		delay: 50 * time.Millisecond,
	}
	m, _ := NewManager(ManagerOpts{Store: store, Refresher: ref})
	m.Login(context.Background(), testUser(), "abc", "r1")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Refresh(context.Background(), "abc")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := ref.calls.Load(); got != 1 {
		t.Errorf("refresh exchanges = %d, want 1", got)
	}
	if m.AccessToken() != "def" {
		t.Errorf("access token = %q, want def", m.AccessToken())
	}
}

// --- Logout tests ---

func TestLogout_ClearsMemoryAndStorage(t *testing.T) {
	store := openTestStore(t)
	m, _ := NewManager(ManagerOpts{Store: store})
	m.Login(context.Background(), testUser(), "abc", "r1")

	m.Logout(context.Background())

	if m.AccessToken() != "" || m.CurrentUser() != nil {
		t.Error("logout must clear in-memory session")
	}

	// Restart must also come up logged out.
	m2, _ := NewManager(ManagerOpts{Store: store})
	m2.Restore(context.Background())
	if m2.AccessToken() != "" || m2.CurrentUser() != nil {
		t.Error("logout must clear durable storage too")
	}
}
