package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"picharvest/pkg/config"
	"picharvest/pkg/logger"
)

// ErrClosed is returned once the manager has been closed
var ErrClosed = errors.New("browser: manager is closed")

// Manager owns one Chrome process shared by every tab of a run.
// Chrome is started on first use, so runs that never render a page never launch it.
type Manager struct {
	cfg    config.BrowserConfig
	logger logger.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a browser Manager
func NewManager(cfg config.BrowserConfig, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Manager{cfg: cfg, logger: l.WithField("component", "browser")}
}

// Browser returns the rod handle, launching or connecting Chrome if needed
func (m *Manager) Browser(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}

	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	return b, nil
}

// Close shuts Chrome down. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	wsURL := m.cfg.RemoteURL

	if wsURL != "" {
		m.logger.WithField("url", wsURL).Info("Connecting to remote browser")
	} else {
		l := launcher.New().
			Context(ctx).
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.logger.WithFields(map[string]interface{}{
			"url":      wsURL,
			"headless": m.cfg.Headless,
		}).Info("Launched local browser")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Cleanup()
			m.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		m.logger.WithError(err).Warn("Could not ignore certificate errors")
	}
	return b, nil
}
