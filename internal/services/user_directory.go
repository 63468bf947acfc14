// Package services – UserDirectory
//
// This file implements UserDirectory, which resolves comment authors. Users
// are identified by the calling service's own id for them (ExternalID) and are
// created lazily the first time they comment.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/repo"
)

// UserAttrs describes a comment author as sent by the calling service.
type UserAttrs struct {
	ExternalID string  `json:"externalId"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	UserGroup  *string `json:"userGroup"`
}

// Validate checks the attributes after normalization.
func (a UserAttrs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ExternalID, validation.Required, validation.RuneLength(1, 255)),
		validation.Field(&a.FirstName, validation.NilOrNotEmpty, validation.RuneLength(0, 255)),
		validation.Field(&a.LastName, validation.NilOrNotEmpty, validation.RuneLength(0, 255)),
		validation.Field(&a.UserGroup, validation.NilOrNotEmpty, validation.RuneLength(0, 255)),
	)
}

// normalize trims every field; optional fields that end up blank become nil.
func (a UserAttrs) normalize() UserAttrs {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		s := strings.TrimSpace(*p)
		if s == "" {
			return nil
		}
		return &s
	}
	return UserAttrs{
		ExternalID: strings.TrimSpace(a.ExternalID),
		FirstName:  trim(a.FirstName),
		LastName:   trim(a.LastName),
		UserGroup:  trim(a.UserGroup),
	}
}

// UserDirectory looks up and lazily creates users. It is stateless and always
// works inside the caller's transaction.
type UserDirectory struct{}

// Exists reports whether serviceID already knows externalID.
func (UserDirectory) Exists(ctx context.Context, tx *gorm.DB, serviceID, externalID string) (bool, error) {
	return repo.UserExists(ctx, tx, serviceID, strings.TrimSpace(externalID))
}

// GetOrCreate returns the user known to serviceID as attrs.ExternalID,
// inserting it when absent. An existing row is returned unchanged.
//
// The insert runs in a savepoint. When a concurrent transaction inserts the
// same user first, the unique violation is rolled back to the savepoint and
// the winner's row is fetched instead.
func (UserDirectory) GetOrCreate(ctx context.Context, tx *gorm.DB, serviceID string, attrs UserAttrs) (*domain.User, error) {
	attrs = attrs.normalize()
	if err := attrs.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUser, err.Error())
	}

	u, err := repo.GetUser(ctx, tx, serviceID, attrs.ExternalID)
	if err == nil {
		return u, nil
	}
	if !repo.IsNotFound(err) {
		return nil, err
	}

	nu := &domain.User{
		ServiceID:  serviceID,
		ExternalID: attrs.ExternalID,
		FirstName:  attrs.FirstName,
		LastName:   attrs.LastName,
		UserGroup:  attrs.UserGroup,
	}
	err = tx.Transaction(func(sp *gorm.DB) error {
		return repo.CreateUser(ctx, sp, nu)
	})
	if err == nil {
		return nu, nil
	}
	if errors.Is(err, repo.ErrDuplicate) {
		return repo.GetUser(ctx, tx, serviceID, attrs.ExternalID)
	}
	return nil, err
}
