// Package domain define a entidade Example, seus eventos e erros.
//
// Sem dependência de HTTP, banco ou broker.
package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxNameLength = 100

type Example struct {
	ID        uuid.UUID
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewExample cria uma entidade ativa com ID novo.
func NewExample(name, email string) (*Example, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Example{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (e *Example) Activate() {
	e.IsActive = true
	e.touch()
}

func (e *Example) Deactivate() {
	e.IsActive = false
	e.touch()
}

func (e *Example) UpdateName(name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	e.Name = name
	e.touch()
	return nil
}

func (e *Example) UpdateEmail(email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	e.Email = email
	e.touch()
	return nil
}

func (e *Example) touch() { e.UpdatedAt = time.Now().UTC() }

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, MaxNameLength)
	}
	return name, nil
}

// NormalizeEmail valida o endereço e devolve só a parte addr-spec, sem nome.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	return addr.Address, nil
}
