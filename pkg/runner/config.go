package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sre-norns/wyrd/pkg/manifest"
	"golang.org/x/mod/semver"

	"github.com/sre-norns/skuld/pkg/catalog"
)

const (
	LabelOS   = "skuld.os"
	LabelArch = "skuld.arch"

	// Browser the renderers run on:
	LabelBrowserProduct      = "skuld.browser.product"
	LabelBrowserVersion      = "skuld.browser.version"
	LabelBrowserVersionMajor = LabelBrowserVersion + ".major"

	// Well-known labels attached to every run:
	LabelBuildVersion = "skuld.version"
	LabelRunID        = "skuld.run.id"
)

const (
	DefaultMaxWaitPerPage   = 30 * time.Second
	DefaultOutlierThreshold = 10 * time.Second
	DefaultRepetitions      = 1
	DefaultSetupTimeout     = time.Minute
	DefaultRunTimeout       = time.Duration(0)
)

// Labels are key-value pairs describing the environment a run was measured in.
type Labels = manifest.Labels

type Config struct {
	systemLabels Labels `kong:"-"`
	CustomLabels Labels `help:"Extra labels to identify this run" env:"SKULD_LABELS"`

	MaxWaitPerPage   time.Duration `help:"Maximum time to wait for a single page to finish loading, 0 waits forever" default:"30s" env:"SKULD_MAX_WAIT_PER_PAGE"`
	OutlierThreshold time.Duration `help:"Pages whose load times differ by more than this between renderers are left out of the totals, 0 keeps all" default:"10s" env:"SKULD_OUTLIER_THRESHOLD"`
	Repetitions      int           `help:"Number of times the whole catalog is loaded per renderer" default:"1" env:"SKULD_REPETITIONS"`
	URLs             []string      `name:"url" help:"URLs to load instead of the default catalog" env:"SKULD_URLS"`
	CatalogFile      string        `help:"File with one URL per line, or a yaml manifest with a urls list, to load instead of the default catalog" type:"path" env:"SKULD_CATALOG_FILE"`
	SetupTimeout     time.Duration `help:"Maximum time to wait for cookies and cache to be cleared before a pass" default:"1m" env:"SKULD_SETUP_TIMEOUT"`
	RunTimeout       time.Duration `help:"Maximum duration of both passes together, pages not measured by then are left out of the report, 0 disables the limit" default:"0s" env:"SKULD_RUN_TIMEOUT"`
}

// Validate checks that custom labels are well-formed label keys and values.
func (c *Config) Validate() error {
	if err := c.CustomLabels.Validate(); err != nil {
		return fmt.Errorf("invalid custom labels: %w", err)
	}

	return nil
}

// EffectiveRepetitions is the number of times each pass loads the catalog, at least once.
func (c *Config) EffectiveRepetitions() int {
	if c.Repetitions < 1 {
		return 1
	}
	return c.Repetitions
}

// Catalog resolves the URLs to measure: explicit URLs first, then the catalog file,
// then the built-in list.
func (c *Config) Catalog() (catalog.Catalog, error) {
	if len(c.URLs) > 0 {
		return catalog.New(c.URLs...), nil
	}

	if c.CatalogFile == "" {
		return catalog.Default(), nil
	}

	f, err := os.Open(c.CatalogFile)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	parse := catalog.Parse
	if ext := filepath.Ext(c.CatalogFile); ext == ".yaml" || ext == ".yml" {
		parse = catalog.ParseManifest
	}

	result, err := parse(f)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("%s: %w", c.CatalogFile, err)
	}
	if result.IsEmpty() {
		return catalog.Catalog{}, fmt.Errorf("catalog file %q lists no URLs", c.CatalogFile)
	}

	return result, nil
}

func GetRuntimeLabels() Labels {
	version := "devel"
	if bi, ok := debug.ReadBuildInfo(); ok {
		version = strings.Trim(bi.Main.Version, "()")
	}

	return Labels{
		LabelArch:         runtime.GOARCH,
		LabelOS:           runtime.GOOS,
		LabelBuildVersion: version,
	}
}

// GetBrowserRuntimeLabels describes a browser from its product string, e.g. "HeadlessChrome/121.0.6167.85".
func GetBrowserRuntimeLabels(product string) Labels {
	name, version, ok := strings.Cut(strings.TrimSpace(product), "/")
	if !ok || version == "" {
		return Labels{}
	}

	labels := Labels{
		LabelBrowserProduct: name,
		LabelBrowserVersion: version,
	}

	// Browser versions carry four components; semver only understands the first three.
	parts := strings.SplitN(version, ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	if major := semver.Major("v" + strings.Join(parts, ".")); major != "" {
		labels[LabelBrowserVersionMajor] = major[1:]
	}

	return labels
}

// WithBrowser records the browser the renderers run on.
func (c *Config) WithBrowser(product string) {
	c.systemLabels = manifest.MergeLabels(c.systemLabels, GetBrowserRuntimeLabels(product))
}

// WithRunID tags the run with an identifier.
func (c *Config) WithRunID(id string) {
	c.systemLabels = manifest.MergeLabels(c.systemLabels, Labels{LabelRunID: id})
}

func (c *Config) GetEffectiveLabels() Labels {
	return manifest.MergeLabels(
		c.systemLabels,
		c.CustomLabels,
	)
}

func NewDefaultConfig() Config {
	return Config{
		systemLabels:     GetRuntimeLabels(),
		MaxWaitPerPage:   DefaultMaxWaitPerPage,
		OutlierThreshold: DefaultOutlierThreshold,
		Repetitions:      DefaultRepetitions,
		SetupTimeout:     DefaultSetupTimeout,
		RunTimeout:       DefaultRunTimeout,
	}
}
