// Package services – ServiceRegistry
//
// This file implements ServiceRegistry, which registers client applications
// and hands out the secret token each of them signs requests with. Tokens
// never change after registration, so lookups go through a TokenCache first.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/cache"
	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/repo"
)

// maxServiceNameLen matches the services.service_name column.
const maxServiceNameLen = 255

// ServiceRegistry manages registered services and their tokens.
type ServiceRegistry struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache holds tokens by service id. Nil disables caching.
	Cache cache.TokenCache
}

// NewServiceRegistry constructs a ServiceRegistry. A nil cache is replaced by
// cache.Nop.
func NewServiceRegistry(db *gorm.DB, c cache.TokenCache) *ServiceRegistry {
	if c == nil {
		c = cache.Nop{}
	}
	return &ServiceRegistry{DB: db, Cache: c}
}

type registerServiceInput struct {
	Name string `json:"serviceName"`
}

func (in *registerServiceInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, maxServiceNameLen)),
	)
}

// Create registers a service named name and returns it with its new token.
// Blank names yield ErrInvalidServiceName; taken names ErrDuplicateService.
func (r *ServiceRegistry) Create(ctx context.Context, name string) (*domain.Service, error) {
	ctx, span := otel.Tracer("services/ServiceRegistry").Start(ctx, "Create")
	defer span.End()

	in := registerServiceInput{Name: strings.TrimSpace(name)}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidServiceName, err.Error())
	}

	s, err := repo.CreateService(ctx, r.DB, in.Name)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateService, in.Name)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("service.id", s.ID))

	if err := r.cache().Set(ctx, s.ID, s.Token); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("service_id", s.ID).Msg("token cache set failed")
	}
	zerolog.Ctx(ctx).Info().Str("service_id", s.ID).Str("service_name", s.ServiceName).Msg("service registered")
	return s, nil
}

// GetByName looks a service up by name, or returns ErrServiceNotFound.
func (r *ServiceRegistry) GetByName(ctx context.Context, name string) (*domain.Service, error) {
	ctx, span := otel.Tracer("services/ServiceRegistry").Start(ctx, "GetByName")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: serviceName: cannot be blank", ErrInvalidServiceName)
	}
	s, err := repo.GetServiceByName(ctx, r.DB, name)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return s, nil
}

// Token returns the signing token of serviceID, reading through the cache.
// tx is the caller's transaction; it is only used on a cache miss.
func (r *ServiceRegistry) Token(ctx context.Context, tx *gorm.DB, serviceID string) (string, error) {
	ctx, span := otel.Tracer("services/ServiceRegistry").Start(ctx, "Token",
		trace.WithAttributes(attribute.String("service.id", serviceID)),
	)
	defer span.End()

	c := r.cache()
	if tok, ok, err := c.Get(ctx, serviceID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("service_id", serviceID).Msg("token cache get failed")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return tok, nil
	}

	if tx == nil {
		tx = r.DB
	}
	tok, err := repo.GetServiceToken(ctx, tx, serviceID)
	if err != nil {
		if repo.IsNotFound(err) {
			return "", ErrServiceNotFound
		}
		return "", err
	}
	if err := c.Set(ctx, serviceID, tok); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("service_id", serviceID).Msg("token cache set failed")
	}
	return tok, nil
}

func (r *ServiceRegistry) cache() cache.TokenCache {
	if r.Cache == nil {
		return cache.Nop{}
	}
	return r.Cache
}
