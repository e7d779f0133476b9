// Package chrome runs the baseline and filtering renderers on a Chrome instance driven over
// the DevTools protocol.
package chrome

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/sre-norns/skuld/pkg/results"
)

type Config struct {
	RemoteURL      string   `help:"DevTools websocket URL of a running Chrome, a local one is launched if empty" env:"SKULD_CHROME_URL"`
	Bin            string   `help:"Path to the Chrome binary to launch" type:"path" env:"SKULD_CHROME_BIN"`
	Headless       bool     `help:"Run the launched Chrome without a window" default:"true" negatable:"" env:"SKULD_CHROME_HEADLESS"`
	NoSandbox      bool     `help:"Disable the Chrome sandbox, needed in most containers" env:"SKULD_CHROME_NO_SANDBOX"`
	Stealth        bool     `help:"Hide automation markers from the loaded pages" env:"SKULD_CHROME_STEALTH"`
	BlockResources []string `help:"Resource types the filtering renderer blocks" default:"images,fonts,media" env:"SKULD_BLOCK_RESOURCES"`
	BlockHosts     []string `help:"Hosts, with their subdomains, the filtering renderer blocks" env:"SKULD_BLOCK_HOSTS"`
	AllowHosts     []string `help:"Hosts, with their subdomains, the filtering renderer never blocks" env:"SKULD_ALLOW_HOSTS"`
}

// Browser is a connection to a Chrome instance the renderers open their pages in.
type Browser struct {
	config   Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   log.Logger
}

// Launch starts a local Chrome, or connects to the remote one if configured.
func Launch(ctx context.Context, config Config, logger log.Logger) (*Browser, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "chrome")

	b := &Browser{
		config: config,
		logger: logger,
	}

	controlURL := config.RemoteURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(config.Headless).NoSandbox(config.NoSandbox)
		if config.Bin != "" {
			l = l.Bin(config.Bin)
		}
		if config.Stealth {
			l = l.Set("disable-blink-features", "AutomationControlled")
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch chrome: %w", err)
		}
		controlURL = u
		b.launcher = l
		level.Info(logger).Log("msg", "launched local chrome", "url", controlURL, "headless", config.Headless)
	} else {
		level.Info(logger).Log("msg", "connecting to remote chrome", "url", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}
	b.browser = browser

	return b, nil
}

// Version returns the browser product string, e.g. "HeadlessChrome/121.0.6167.85".
func (b *Browser) Version() (string, error) {
	v, err := b.browser.Version()
	if err != nil {
		return "", fmt.Errorf("failed to get chrome version: %w", err)
	}

	return v.Product, nil
}

// NewRenderer opens a page in a fresh browser context. The filtering kind blocks requests
// according to the configured filter.
func (b *Browser) NewRenderer(kind results.Kind) (*Renderer, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context for %s renderer: %w", kind, err)
	}

	var filter *Filter
	if kind == results.Filtering {
		filter = NewFilter(b.config.BlockResources, b.config.BlockHosts, b.config.AllowHosts)
	}

	r, err := newRenderer(incognito, kind, filter, b.config.Stealth, log.With(b.logger, "kind", kind))
	if err != nil {
		_ = incognito.Close()
		return nil, err
	}

	return r, nil
}

func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.cleanup()

	return err
}

func (b *Browser) cleanup() {
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
}
