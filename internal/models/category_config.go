package models

import (
	"fmt"
	"time"
)

// CategoryConfig holds the per-category policy knobs: fuzz radius range,
// default TTL and extension allowance. A fuzz range of [0,0] means the exact
// coordinate is kept, reserved for authority-issued categories.
type CategoryConfig struct {
	Category          Category `json:"category"`
	FuzzMinMeters     float64  `json:"fuzz_min_meters"`
	FuzzMaxMeters     float64  `json:"fuzz_max_meters"`
	DefaultTTLHours   int      `json:"default_ttl_hours"`
	MaxExtensionHours int      `json:"max_extension_hours"`
	MaxExtensions     int      `json:"max_extensions"`
	IsActive          bool     `json:"is_active"`
}

// Validate checks the config invariants.
func (c CategoryConfig) Validate() error {
	if c.FuzzMinMeters > c.FuzzMaxMeters {
		return fmt.Errorf("category %s: fuzz_min_meters %g > fuzz_max_meters %g", c.Category, c.FuzzMinMeters, c.FuzzMaxMeters)
	}
	if c.FuzzMinMeters < 0 {
		return fmt.Errorf("category %s: negative fuzz_min_meters %g", c.Category, c.FuzzMinMeters)
	}
	if c.DefaultTTLHours <= 0 {
		return fmt.Errorf("category %s: default_ttl_hours must be positive", c.Category)
	}
	return nil
}

// DefaultTTL returns the category TTL as a duration.
func (c CategoryConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLHours) * time.Hour
}

// ExtensionStep returns the duration each author-driven extension adds.
func (c CategoryConfig) ExtensionStep() time.Duration {
	return time.Duration(c.MaxExtensionHours) * time.Hour
}

// Extendable reports whether the category supports author-driven extensions
// at all. MaxExtensionHours == 0 disables extensions regardless of
// MaxExtensions.
func (c CategoryConfig) Extendable() bool {
	return c.MaxExtensionHours > 0 && c.MaxExtensions > 0
}

// Catalog is an immutable snapshot of the category configuration, loaded once
// at process start. It is never mutated mid-request; configuration changes
// ship as a new snapshot.
type Catalog struct {
	byCategory map[Category]CategoryConfig
}

// NewCatalog builds a catalog from config rows, validating each.
func NewCatalog(configs []CategoryConfig) (*Catalog, error) {
	byCategory := make(map[Category]CategoryConfig, len(configs))
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		byCategory[c.Category] = c
	}
	return &Catalog{byCategory: byCategory}, nil
}

// Lookup returns the config for an active category. The second return is
// false for unknown or deactivated categories.
func (cat *Catalog) Lookup(c Category) (CategoryConfig, bool) {
	cfg, ok := cat.byCategory[c]
	if !ok || !cfg.IsActive {
		return CategoryConfig{}, false
	}
	return cfg, true
}

// DefaultCategoryConfigs returns the shipped category catalog.
func DefaultCategoryConfigs() []CategoryConfig {
	return []CategoryConfig{
		{Category: CategoryStreetFood, FuzzMinMeters: 30, FuzzMaxMeters: 50, DefaultTTLHours: 4, MaxExtensionHours: 2, MaxExtensions: 1, IsActive: true},
		{Category: CategoryLostFound, FuzzMinMeters: 50, FuzzMaxMeters: 100, DefaultTTLHours: 24, MaxExtensionHours: 12, MaxExtensions: 2, IsActive: true},
		{Category: CategorySafetyAlert, FuzzMinMeters: 100, FuzzMaxMeters: 150, DefaultTTLHours: 8, MaxExtensionHours: 4, MaxExtensions: 2, IsActive: true},
		{Category: CategoryTrafficRoad, FuzzMinMeters: 50, FuzzMaxMeters: 100, DefaultTTLHours: 2, MaxExtensionHours: 1, MaxExtensions: 1, IsActive: true},
		{Category: CategoryCommunityEvent, FuzzMinMeters: 30, FuzzMaxMeters: 80, DefaultTTLHours: 48, MaxExtensionHours: 24, MaxExtensions: 2, IsActive: true},
		{Category: CategoryUtilityIssue, FuzzMinMeters: 50, FuzzMaxMeters: 100, DefaultTTLHours: 12, MaxExtensionHours: 6, MaxExtensions: 1, IsActive: true},
		{Category: CategoryNoiseComplaint, FuzzMinMeters: 100, FuzzMaxMeters: 200, DefaultTTLHours: 3, MaxExtensionHours: 0, MaxExtensions: 0, IsActive: true},
		{Category: CategoryFreeStuff, FuzzMinMeters: 30, FuzzMaxMeters: 80, DefaultTTLHours: 6, MaxExtensionHours: 3, MaxExtensions: 1, IsActive: true},
		{Category: CategoryBarangayAnnouncement, FuzzMinMeters: 0, FuzzMaxMeters: 0, DefaultTTLHours: 72, MaxExtensionHours: 24, MaxExtensions: 3, IsActive: true},
		{Category: CategoryGeneral, FuzzMinMeters: 50, FuzzMaxMeters: 100, DefaultTTLHours: 6, MaxExtensionHours: 3, MaxExtensions: 1, IsActive: true},
	}
}

// DefaultCatalog builds the shipped catalog. It panics on invalid defaults,
// which would be a programming error.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(DefaultCategoryConfigs())
	if err != nil {
		panic(err)
	}
	return cat
}
