// Package live implements dom.Page on a real Chrome tab driven by rod.
//
// Unlike the static page, a live tab runs scripts, so clicking "next" or
// scrolling may change the document in place without a navigation.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"inspector/internal/logger"
)

// Config controls how Chrome is started and how tabs are opened.
type Config struct {
	// RemoteURL is the DevTools WebSocket of an already running Chrome.
	// Empty launches a local browser.
	RemoteURL string `yaml:"remote_url" env:"INSPECTOR_BROWSER_REMOTE_URL"`

	Headless bool `yaml:"headless" env:"INSPECTOR_BROWSER_HEADLESS"`
	Stealth  bool `yaml:"stealth" env:"INSPECTOR_BROWSER_STEALTH"`

	// BlockResources lists resource types not worth downloading
	// (images, fonts, media, stylesheets).
	BlockResources []string `yaml:"block_resources"`

	NavigateTimeout time.Duration `yaml:"navigate_timeout" env:"INSPECTOR_BROWSER_NAVIGATE_TIMEOUT"`
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
}

// Browser owns one Chrome connection.
type Browser struct {
	cfg  Config
	log  logger.Logger
	rod  *rod.Browser
	lnch *launcher.Launcher
}

// Launch starts (or connects to) Chrome.
func Launch(ctx context.Context, cfg Config, log logger.Logger) (*Browser, error) {
	cfg.defaults()
	if log == nil {
		log = logger.NewNop()
	}

	b := &Browser{cfg: cfg, log: log}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("live: launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("launched chrome", logger.String("url", wsURL), logger.Bool("headless", cfg.Headless))
	} else {
		log.Info("connecting to chrome", logger.String("url", wsURL))
	}

	r := rod.New().ControlURL(wsURL)
	if err := r.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("live: connect: %w", err)
	}
	b.rod = r
	return b, nil
}

// Open creates a tab and navigates it to pageURL.
func (b *Browser) Open(ctx context.Context, pageURL string) (*Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if b.cfg.Stealth {
		p, err = stealth.Page(b.rod)
	} else {
		p, err = b.rod.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("live: create tab: %w", err)
	}

	if len(b.cfg.BlockResources) > 0 {
		blockResources(p, b.cfg.BlockResources)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	if err := p.Context(navCtx).Navigate(pageURL); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("live: navigate %s: %w", pageURL, err)
	}
	if err := p.Context(navCtx).WaitLoad(); err != nil {
		b.log.Warn("wait load", logger.String("url", pageURL), logger.Error(err))
	}

	return &Page{page: p, log: b.log}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	var err error
	if b.rod != nil {
		err = b.rod.Close()
		b.rod = nil
	}
	b.cleanup()
	return err
}

func (b *Browser) cleanup() {
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
}
