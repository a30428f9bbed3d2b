package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed is reference data loaded by the seed command.
type Seed struct {
	Departments []SeedDepartment `yaml:"departments"`
	Categories  []SeedCategory   `yaml:"categories"`
	Users       []SeedUser       `yaml:"users"`
}

type SeedDepartment struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

type SeedCategory struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	DefaultPriority string        `yaml:"default_priority"`
	ResponseWindow  time.Duration `yaml:"response_window"`
	DepartmentID    string        `yaml:"department_id"`
	Active          *bool         `yaml:"active"`
}

type SeedUser struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	DepartmentID string `yaml:"department_id"`
	Active       *bool  `yaml:"active"`
}

// LoadSeed reads and checks a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML and reports every structural problem at once.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	var errs []error
	departments := map[string]bool{}
	for i, d := range seed.Departments {
		if d.ID == "" || d.Name == "" {
			errs = append(errs, fmt.Errorf("departments[%d]: id and name are required", i))
		}
		departments[d.ID] = true
	}
	for i, c := range seed.Categories {
		if c.ID == "" || c.Name == "" {
			errs = append(errs, fmt.Errorf("categories[%d]: id and name are required", i))
		}
		switch c.DefaultPriority {
		case "LOW", "MEDIUM", "HIGH", "CRITICAL":
		default:
			errs = append(errs, fmt.Errorf("categories[%d]: unknown default_priority %q", i, c.DefaultPriority))
		}
		if c.ResponseWindow < time.Second {
			errs = append(errs, fmt.Errorf("categories[%d]: response_window must be at least 1s", i))
		}
		if !departments[c.DepartmentID] {
			errs = append(errs, fmt.Errorf("categories[%d]: department %q not declared", i, c.DepartmentID))
		}
	}
	for i, u := range seed.Users {
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("users[%d]: id is required", i))
		}
		switch u.Role {
		case "student", "lecturer", "admin":
		default:
			errs = append(errs, fmt.Errorf("users[%d]: unknown role %q", i, u.Role))
		}
		if u.DepartmentID != "" && !departments[u.DepartmentID] {
			errs = append(errs, fmt.Errorf("users[%d]: department %q not declared", i, u.DepartmentID))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &seed, nil
}
