package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nhassan/fieldops/internal/api"
	"github.com/nhassan/fieldops/internal/config"
	"github.com/nhassan/fieldops/internal/keystore"
	"github.com/nhassan/fieldops/internal/models"
	"github.com/nhassan/fieldops/internal/session"
)

// defaultConfigPath is where commands look for settings unless -c is given.
const defaultConfigPath = "fieldops.yaml"

// sdk bundles the client stack a command needs: config, credential store,
// session and the authenticated API client.
type sdk struct {
	cfg     *config.Config
	store   *keystore.Store
	auth    *api.AuthService
	session *session.Manager
	client  *api.Client
}

// buildSDK wires the full stack from a config file and restores any
// persisted session.
func buildSDK(configPath string) (*sdk, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := keystore.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}

	auth, err := api.NewAuthService(api.AuthOpts{
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	mgr, err := session.NewManager(session.ManagerOpts{
		Store:     store,
		Refresher: auth,
	})
	if err != nil {
		return nil, err
	}
	mgr.Restore(context.Background())

	client, err := api.NewClient(api.ClientOpts{
		BaseURL:    cfg.BaseURL,
		Tokens:     mgr,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	return &sdk{
		cfg:     cfg,
		store:   store,
		auth:    auth,
		session: mgr,
		client:  client,
	}, nil
}

// requireUser returns the logged-in identity or a friendly error.
func (s *sdk) requireUser() (*models.User, error) {
	u := s.session.CurrentUser()
	if u == nil {
		return nil, fmt.Errorf("not logged in; run \"fops login\" first")
	}
	return u, nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
