// Package browser implements ports.Session over a Chrome DevTools Protocol
// connection using go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/ports"
)

// Config controls how the browser is started or reached.
type Config struct {
	// ControlURL attaches to an already running browser instead of launching one.
	ControlURL string
	Bin        string
	Headless   bool
	// UserDataDir keeps cookies between runs, so a signed-in profile survives restarts.
	UserDataDir       string
	NavigationTimeout time.Duration
	// UserAgents is the pool each new page draws its user agent from.
	// Empty means DefaultUserAgents.
	UserAgents []string
}

// DefaultUserAgents are current desktop Chromium agents, matching the engine
// actually driven so header and JS fingerprints agree.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
}

// hideWebdriver runs before any page script so automation is not advertised.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Browser owns one browser process and opens pages on it.
type Browser struct {
	mu      sync.Mutex
	cfg     Config
	browser *rod.Browser
	launch  *launcher.Launcher
	logger  *slog.Logger
	intn    func(n int) int
}

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		b.logger = logger
	}
}

// New prepares a browser. Nothing is started until the first Open.
func New(cfg Config, opts ...Option) *Browser {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	b := &Browser{cfg: cfg, logger: logging.NewNop(), intn: rand.IntN}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Browser) connect(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		b.logger.Warn("Stale browser connection, reconnecting")
		_ = b.browser.Close()
		b.browser = nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(b.cfg.Headless).Leakless(false)
		if b.cfg.Bin != "" {
			l = l.Bin(b.cfg.Bin)
		}
		if b.cfg.UserDataDir != "" {
			l = l.UserDataDir(b.cfg.UserDataDir)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launch = l
		controlURL = u
	}

	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.browser = br
	b.logger.Info("Browser connected", "headless", b.cfg.Headless)
	return br, nil
}

// Open creates a new page. It implements the session manager's provider contract.
func (b *Browser) Open(ctx context.Context) (ports.Session, error) {
	br, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	page, err := br.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := b.disguise(page); err != nil {
		_ = page.Close()
		return nil, err
	}
	return &Session{page: page, navTimeout: b.cfg.NavigationTimeout}, nil
}

// userAgent draws one agent from the pool.
func (b *Browser) userAgent() string {
	return b.cfg.UserAgents[b.intn(len(b.cfg.UserAgents))]
}

func (b *Browser) disguise(page *rod.Page) error {
	ua := b.userAgent()
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if _, err := page.EvalOnNewDocument(hideWebdriver); err != nil {
		return fmt.Errorf("hide webdriver flag: %w", err)
	}
	b.logger.Debug("Page opened", "user_agent", ua)
	return nil
}

// Close shuts the browser down. Pages opened by Open become unusable.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.browser != nil {
		errs = append(errs, b.browser.Close())
		b.browser = nil
	}
	if b.launch != nil {
		b.launch.Cleanup()
		b.launch = nil
	}
	return errors.Join(errs...)
}
