// Package appmeta resolves package identifiers to display names and
// categories for the statistics views.
package appmeta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/screenguard/internal/usage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// DefaultMissTTL is how long a failed lookup is remembered.
const DefaultMissTTL = time.Minute

// ErrUnknownApp is returned by a Lookup when the package is not installed.
var ErrUnknownApp = errors.New("appmeta: unknown app")

// Raw category names reported by the device.
const (
	RawGame         = "game"
	RawVideo        = "video"
	RawAudio        = "audio"
	RawSocial       = "social"
	RawMaps         = "maps"
	RawProductivity = "productivity"
)

// AppInfo is the metadata the device reports for an installed app.
type AppInfo struct {
	PackageID string `json:"package"`
	Label     string `json:"label"`
	Category  string `json:"category"`
	System    bool   `json:"system"`
}

// Lookup fetches metadata for one package.
type Lookup interface {
	LookupApp(ctx context.Context, packageID string) (AppInfo, error)
}

// Config holds resolver configuration
type Config struct {
	CacheSize   int
	CatalogPath string
	MissTTL     time.Duration
}

type entry struct {
	name     string
	category usage.Category
}

// Resolver implements usage.Resolver. Overrides win over the cache, which
// wins over the device. Failed lookups are remembered for MissTTL only, so an
// app installed later still resolves.
type Resolver struct {
	lookup    Lookup
	cache     *lru.Cache[string, entry]
	misses    *expirable.LRU[string, struct{}]
	overrides Catalog
	logger    zerolog.Logger
}

// NewResolver creates a resolver, loading the override catalog when configured.
func NewResolver(lookup Lookup, config Config, logger zerolog.Logger) (*Resolver, error) {
	if config.CacheSize <= 0 {
		config.CacheSize = 512
	}
	if config.MissTTL <= 0 {
		config.MissTTL = DefaultMissTTL
	}

	cache, err := lru.New[string, entry](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create app metadata cache: %w", err)
	}

	overrides := Catalog{}
	if config.CatalogPath != "" {
		overrides, err = LoadCatalog(config.CatalogPath)
		if err != nil {
			return nil, err
		}
	}

	return &Resolver{
		lookup:    lookup,
		cache:     cache,
		misses:    expirable.NewLRU[string, struct{}](config.CacheSize, nil, config.MissTTL),
		overrides: overrides,
		logger:    logger.With().Str("component", "app-metadata").Logger(),
	}, nil
}

// Resolve returns the label and category for packageID, falling back to the
// identifier and CategoryOther. The device is asked at most once.
func (r *Resolver) Resolve(ctx context.Context, packageID string) (string, usage.Category) {
	o := r.overrides[packageID]
	name, category := o.Name, o.Category
	if name == "" || category == "" {
		if e, ok := r.resolve(ctx, packageID); ok {
			if name == "" {
				name = e.name
			}
			if category == "" {
				category = e.category
			}
		}
	}
	if name == "" {
		name = packageID
	}
	if category == "" {
		category = usage.CategoryOther
	}
	return name, category
}

// DisplayName returns the app label, or packageID when it cannot be resolved.
func (r *Resolver) DisplayName(ctx context.Context, packageID string) string {
	name, _ := r.Resolve(ctx, packageID)
	return name
}

// Category returns the app category, or CategoryOther when it cannot be resolved.
func (r *Resolver) Category(ctx context.Context, packageID string) usage.Category {
	_, category := r.Resolve(ctx, packageID)
	return category
}

func (r *Resolver) resolve(ctx context.Context, packageID string) (entry, bool) {
	if e, ok := r.cache.Get(packageID); ok {
		return e, true
	}
	if _, missed := r.misses.Get(packageID); missed {
		return entry{}, false
	}

	info, err := r.lookup.LookupApp(ctx, packageID)
	if err != nil {
		if errors.Is(err, ErrUnknownApp) {
			r.logger.Debug().Str("package", packageID).Msg("App not installed, using package id")
		} else {
			r.logger.Warn().Err(err).Str("package", packageID).Msg("App metadata lookup failed")
		}
		if ctx.Err() == nil {
			r.misses.Add(packageID, struct{}{})
		}
		return entry{}, false
	}

	e := entry{name: info.Label, category: MapCategory(info.Category, info.System)}
	if e.name == "" {
		e.name = packageID
	}
	r.cache.Add(packageID, e)
	return e, true
}

// MapCategory folds a raw device category into the statistics categories.
func MapCategory(raw string, system bool) usage.Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RawGame:
		return usage.CategoryGames
	case RawVideo, RawAudio:
		return usage.CategoryMedia
	case RawSocial:
		return usage.CategorySocial
	case RawMaps, RawProductivity:
		return usage.CategoryProductivity
	}
	if system {
		return usage.CategorySystem
	}
	return usage.CategoryOther
}
