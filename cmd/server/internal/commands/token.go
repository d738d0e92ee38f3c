package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/tableside/internal/auth"
)

// TokenCmd mints an access token signed with the server key. Intended for
// operators and local development.
type TokenCmd struct {
	Role    string          `help:"Role to grant" required:"" enum:"super_admin,admin,manager,staff,kitchen,customer"`
	Tenant  string          `help:"Tenant id to bind the token to"`
	User    string          `help:"User id (generated when empty)"`
	TTL     time.Duration   `help:"Token lifetime" default:"1h"`
	Signing SigningKeyFlags `embed:""`
}

func (t *TokenCmd) Validate() error {
	if t.Tenant != "" {
		if _, err := uuid.Parse(t.Tenant); err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}
	}
	if t.User != "" {
		if _, err := uuid.Parse(t.User); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}
	return nil
}

func (t *TokenCmd) Run(_ context.Context, _ *Globals) error {
	keyPEM, ok, err := t.Signing.load()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("a signing key is required (--signing-key-file or TABLESIDE_SIGNING_KEY_FILE)")
	}

	role, err := auth.ParseRole(t.Role)
	if err != nil {
		return err
	}

	p := &auth.Principal{UserID: uuid.New(), Role: role}
	if t.User != "" {
		p.UserID = uuid.MustParse(t.User)
	}
	if t.Tenant != "" {
		id := uuid.MustParse(t.Tenant)
		p.TenantID = &id
	}

	token, err := auth.IssueToken(keyPEM, p, t.TTL)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}
