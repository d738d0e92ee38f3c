package bootstrap

import (
	"fmt"
	"os"

	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/tenant"
	"gopkg.in/yaml.v3"
)

// Config holds the services used to seed a fresh environment
type Config struct {
	Tenants     *tenant.Service
	TenantStore store.TenantStore
	Menus       *menu.Service
}

// Fixtures is the YAML seed document.
type Fixtures struct {
	Tenants []TenantFixture `yaml:"tenants"`
}

// TenantFixture describes one restaurant and its menu.
type TenantFixture struct {
	Name         string              `yaml:"name"`
	Subdomain    string              `yaml:"subdomain"`
	CustomDomain string              `yaml:"customDomain"`
	Status       models.TenantStatus `yaml:"status"`
	Categories   []CategoryFixture   `yaml:"categories"`

	// Uncategorized items
	Items []menu.ItemInput `yaml:"items"`
}

type CategoryFixture struct {
	menu.CategoryInput `yaml:",inline"`
	Items              []menu.ItemInput `yaml:"items"`
}

// Resources holds identifiers for seeded tenants
type Resources struct {
	// Tenant ids by subdomain
	TenantIDs map[string]string

	// Subdomains that already existed and were left untouched
	Skipped []string
}

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}
