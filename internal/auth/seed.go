package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []struct {
		Email     string  `yaml:"email"`
		Password  string  `yaml:"password"`
		FirstName string  `yaml:"first_name"`
		LastName  string  `yaml:"last_name"`
		Phone     *string `yaml:"phone"`
		Admin     bool    `yaml:"admin"`
	} `yaml:"users"`
}

// SeedFromFile creates the users listed in a YAML file. Accounts that already
// exist, deactivated ones included, are left untouched. It returns the number of users created.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, entry := range file.Users {
		email := normalizeEmail(entry.Email)
		if email == "" || entry.Password == "" {
			continue
		}

		exists, err := s.store.EmailRegistered(ctx, email)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		if entry.Admin {
			if err := s.BootstrapAdmin(ctx, email, entry.Password, entry.FirstName, entry.LastName); err != nil {
				return created, err
			}
			created++
			continue
		}

		hash, err := HashPassword(entry.Password)
		if err != nil {
			return created, err
		}
		id, err := uuid.NewV7()
		if err != nil {
			return created, fmt.Errorf("generate uuid v7: %w", err)
		}
		if _, err := s.store.CreateUser(ctx, User{
			ID:           id,
			Email:        email,
			PasswordHash: hash,
			FirstName:    entry.FirstName,
			LastName:     entry.LastName,
			Phone:        entry.Phone,
			IsActive:     true,
			CreatedAt:    s.now().UTC(),
		}); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				continue
			}
			return created, err
		}
		created++
	}

	return created, nil
}
