package services

import (
	"context"
	"fmt"

	"userhub/internal/core/domain"
	"userhub/internal/core/ports"
	"userhub/pkg/validation"
)

type userValidator struct {
	repo ports.UserRepository
}

// NewUserValidator checks field formats first, then email and name
// uniqueness against the store.
func NewUserValidator(repo ports.UserRepository) ports.Validator {
	return &userValidator{repo: repo}
}

func (v *userValidator) ValidateCreate(ctx context.Context, name, email string) error {
	return v.validate(ctx, name, email, "")
}

func (v *userValidator) ValidateUpdate(ctx context.Context, id domain.UserID, name, email string) error {
	return v.validate(ctx, name, email, id)
}

func (v *userValidator) validate(ctx context.Context, name, email string, excludeID domain.UserID) error {
	if err := validation.ValidateName(name); err != nil {
		return domain.NewValidationError(domain.InvalidName, "name", "%s", err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return domain.NewValidationError(domain.InvalidEmail, "email", "%s", err)
	}

	taken, err := v.repo.ExistsByEmailExcludingID(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("check email uniqueness: %w", err)
	}
	if taken {
		return domain.NewValidationError(domain.DuplicateEmail, "email", "email %s is already in use", email)
	}

	taken, err = v.repo.ExistsByNameExcludingID(ctx, name, excludeID)
	if err != nil {
		return fmt.Errorf("check name uniqueness: %w", err)
	}
	if taken {
		return domain.NewValidationError(domain.DuplicateName, "name", "name %s is already in use", name)
	}

	return nil
}
