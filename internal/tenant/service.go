package tenant

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/models"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
)

const (
	shareSlugBytes    = 8
	shareSlugAttempts = 5
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// CacheInvalidator drops every cached entry for a tenant.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID)
}

// Service implements tenant administration.
type Service struct {
	tenants store.TenantStore
	cache   CacheInvalidator
	events  realtime.Broadcaster
}

// NewService creates a tenant service. cache and events may be nil. Removal
// is announced through events so every process closes the tenant's groups.
func NewService(tenants store.TenantStore, cache CacheInvalidator, events realtime.Broadcaster) *Service {
	if events == nil {
		events = realtime.NopBroadcaster{}
	}
	return &Service{tenants: tenants, cache: cache, events: events}
}

// Create registers a new tenant. An empty ID is replaced with a UUIDv7 and an
// empty status defaults to TRIAL.
func (s *Service) Create(ctx context.Context, t *models.Tenant) error {
	t.Subdomain = strings.ToLower(strings.TrimSpace(t.Subdomain))
	if !subdomainPattern.MatchString(t.Subdomain) {
		return fmt.Errorf("invalid subdomain %q", t.Subdomain)
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tenant name is required")
	}

	if t.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate tenant id: %w", err)
		}
		t.ID = id
	}
	if t.Status == "" {
		t.Status = models.TenantStatusTrial
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	return s.tenants.Create(ctx, t)
}

// RegenerateShareSlug replaces the tenant's share slug with a fresh random one
// and returns it. The old slug stops resolving immediately.
func (s *Service) RegenerateShareSlug(ctx context.Context, tenantID uuid.UUID) (string, error) {
	slug, err := backoff.Retry(ctx, func() (string, error) {
		slug, err := newShareSlug()
		if err != nil {
			return "", backoff.Permanent(err)
		}

		err = s.tenants.UpdateShareSlug(ctx, tenantID, slug)
		switch {
		case errors.Is(err, store.ErrSlugTaken):
			return "", err
		case err != nil:
			return "", backoff.Permanent(err)
		}
		return slug, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(10*time.Millisecond)),
		backoff.WithMaxTries(shareSlugAttempts),
	)
	if err != nil {
		return "", fmt.Errorf("failed to regenerate share slug: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID)
	}

	zerolog.Ctx(ctx).Info().Stringer("tenant_id", tenantID).Msg("share slug regenerated")

	return slug, nil
}

// Remove deletes the tenant with all of its data, then drops its cached menu
// and broadcasts tenant.closed so every process closes its realtime groups.
func (s *Service) Remove(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.tenants.Delete(ctx, tenantID); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID)
	}
	s.events.Publish(ctx, realtime.TenantClosed(tenantID))

	zerolog.Ctx(ctx).Info().Stringer("tenant_id", tenantID).Msg("tenant removed")

	return nil
}

func newShareSlug() (string, error) {
	b := make([]byte, shareSlugBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate share slug: %w", err)
	}
	return base58.Encode(b), nil
}
