package auth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the static configuration of one principal and its credential.
// Exactly one of Password and PasswordHash should be set; a plaintext
// Password is hashed when the store is built.
type Seed struct {
	ID             string   `yaml:"id"`
	Email          string   `yaml:"email"`
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	OrganizationID string   `yaml:"organization_id"`
	Permissions    []string `yaml:"permissions"`
	Password       string   `yaml:"password"`
	PasswordHash   string   `yaml:"password_hash"`
}

const demoOrganizationID = "org-optibid-demo"

// DemoSeeds returns the built-in demo accounts of the marketing site.
func DemoSeeds() []Seed {
	return []Seed{
		{
			ID:             "usr-admin",
			Email:          "admin@optibid.com",
			Name:           "OptiBid Administrator",
			Role:           string(RoleAdmin),
			OrganizationID: demoOrganizationID,
			Password:       "admin123",
		},
		{
			ID:             "usr-trader",
			Email:          "trader@optibid.com",
			Name:           "Energy Trader",
			Role:           string(RoleTrader),
			OrganizationID: demoOrganizationID,
			Password:       "trader123",
		},
		{
			ID:             "usr-demo",
			Email:          "demo@optibid.com",
			Name:           "Demo User",
			Role:           string(RoleUser),
			OrganizationID: demoOrganizationID,
			Password:       "demo123",
		},
	}
}

type seedFile struct {
	Principals []Seed `yaml:"principals"`
}

// LoadSeeds reads principals from a YAML document of the form
//
//	principals:
//	  - email: ops@example.com
//	    role: admin
//	    password_hash: $2a$10$...
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read principals file: %w", err)
	}
	return ParseSeeds(data)
}

// ParseSeeds decodes the YAML seed document.
func ParseSeeds(data []byte) ([]Seed, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse principals file: %w", err)
	}
	if len(doc.Principals) == 0 {
		return nil, errors.New("principals file defines no principals")
	}
	return doc.Principals, nil
}
