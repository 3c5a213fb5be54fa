package config

import (
	"fmt"
	"os"

	yamlv2 "gopkg.in/yaml.v2"
)

// RosterProvider is one onboarded provider. ShopID is 0 for independents.
type RosterProvider struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	ShopID int64  `yaml:"shop_id"`
}

// RosterShop is one partner shop.
type RosterShop struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Roster is the trusted provider and shop directory. Shop affiliation drives
// the fee split, so it is never taken from the booking request.
type Roster struct {
	Providers []RosterProvider `yaml:"providers"`
	Shops     []RosterShop     `yaml:"shops"`

	providersByID map[int64]RosterProvider
	shopsByID     map[int64]RosterShop
}

// LoadRoster reads and validates the roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var roster Roster
	if err := yamlv2.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}

	if err := roster.Validate(); err != nil {
		return nil, err
	}
	roster.index()
	return &roster, nil
}

func (r *Roster) Validate() error {
	shops := make(map[int64]bool, len(r.Shops))
	for _, shop := range r.Shops {
		if shop.ID <= 0 {
			return fmt.Errorf("shop %q has invalid id %d", shop.Name, shop.ID)
		}
		if shop.Name == "" {
			return fmt.Errorf("shop %d has no name", shop.ID)
		}
		if shops[shop.ID] {
			return fmt.Errorf("duplicate shop id %d", shop.ID)
		}
		shops[shop.ID] = true
	}

	seen := make(map[int64]bool, len(r.Providers))
	for _, provider := range r.Providers {
		if provider.ID <= 0 {
			return fmt.Errorf("provider %q has invalid id %d", provider.Name, provider.ID)
		}
		if provider.Name == "" {
			return fmt.Errorf("provider %d has no name", provider.ID)
		}
		if seen[provider.ID] {
			return fmt.Errorf("duplicate provider id %d", provider.ID)
		}
		seen[provider.ID] = true
		if provider.ShopID != 0 && !shops[provider.ShopID] {
			return fmt.Errorf("provider %d references unknown shop %d", provider.ID, provider.ShopID)
		}
	}
	return nil
}

func (r *Roster) index() {
	r.providersByID = make(map[int64]RosterProvider, len(r.Providers))
	for _, provider := range r.Providers {
		r.providersByID[provider.ID] = provider
	}
	r.shopsByID = make(map[int64]RosterShop, len(r.Shops))
	for _, shop := range r.Shops {
		r.shopsByID[shop.ID] = shop
	}
}

// Provider looks up a provider by id.
func (r *Roster) Provider(id int64) (RosterProvider, bool) {
	if r == nil {
		return RosterProvider{}, false
	}
	provider, ok := r.providersByID[id]
	return provider, ok
}

// Shop looks up a shop by id.
func (r *Roster) Shop(id int64) (RosterShop, bool) {
	if r == nil {
		return RosterShop{}, false
	}
	shop, ok := r.shopsByID[id]
	return shop, ok
}
