package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-platform/internal/crm"
	"crm-platform/internal/mail"
	"crm-platform/internal/phone"

	"github.com/google/uuid"
)

// Resolver matches inbound signals (phone or email) to customer records.
//
// Creation policy:
// - Phone resolution creates a customer when none exists (unless the number
//   is on the account's block list).
// - Email resolution only ever looks up; email ingestion never creates
//   customers.

var (
	// ErrSuppressed means the number is on the block list; callers must not
	// create a Customer or a Call for it.
	ErrSuppressed = errors.New("identity: number suppressed")

	// ErrNoMatch means neither the address nor any embedded phone number
	// matched an existing customer.
	ErrNoMatch = errors.New("identity: no matching customer")
)

// Repository is the slice of storage the resolver needs.
// Implementations must enforce (account_id, value) uniqueness on the phone
// and email join tables; the resolver relies on ErrDuplicate to detect a
// lost creation race.
type Repository interface {
	IsBlockedNumber(ctx context.Context, accountID, phoneE164 string) (bool, error)

	FindCustomerByPhone(ctx context.Context, accountID, phoneE164 string) (customerID string, err error)
	CreateCustomerWithPhone(ctx context.Context, c crm.Customer, p crm.CustomerPhone) error

	FindCustomerByEmail(ctx context.Context, accountID, emailLower string) (customerID string, err error)
	AttachCustomerEmail(ctx context.Context, e crm.CustomerEmail) error
	SetCustomerDisplayName(ctx context.Context, accountID, customerID, name string) error
}

type Resolver struct {
	repo  Repository
	clock func() time.Time
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, clock: time.Now}
}

// ResolveFromPhone finds or creates the customer owning phoneE164.
// A concurrent duplicate delivery may win the creation race; the loser
// falls back to a lookup and returns the winner's row.
func (r *Resolver) ResolveFromPhone(ctx context.Context, accountID, phoneE164 string) (string, error) {
	if accountID == "" || phoneE164 == "" {
		return "", errors.New("identity: account_id and phone required")
	}

	blocked, err := r.repo.IsBlockedNumber(ctx, accountID, phoneE164)
	if err != nil {
		return "", fmt.Errorf("identity: blocklist check: %w", err)
	}
	if blocked {
		return "", ErrSuppressed
	}

	if id, err := r.repo.FindCustomerByPhone(ctx, accountID, phoneE164); err == nil {
		return id, nil
	} else if !errors.Is(err, crm.ErrNotFound) {
		return "", fmt.Errorf("identity: phone lookup: %w", err)
	}

	now := r.clock().UTC()
	customer := crm.Customer{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		LastInteractionAt: now,
		CreatedAt:         now,
	}
	phoneRow := crm.CustomerPhone{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CustomerID: customer.ID,
		PhoneE164:  phoneE164,
		CreatedAt:  now,
	}

	err = r.repo.CreateCustomerWithPhone(ctx, customer, phoneRow)
	if err == nil {
		return customer.ID, nil
	}
	if errors.Is(err, crm.ErrDuplicate) {
		// Lost the race; use the winner's row.
		id, lookupErr := r.repo.FindCustomerByPhone(ctx, accountID, phoneE164)
		if lookupErr != nil {
			return "", fmt.Errorf("identity: post-race lookup: %w", lookupErr)
		}
		return id, nil
	}
	return "", fmt.Errorf("identity: create customer: %w", err)
}

// ResolveFromEmailOrText finds a customer by email address, falling back to
// phone numbers embedded in bodyText. Exact address match takes precedence
// over embedded-phone matches. On a phone match the address is attached to
// that customer (insert-if-absent) and displayName fills an empty
// display_name. Never creates a customer.
func (r *Resolver) ResolveFromEmailOrText(ctx context.Context, accountID, emailAddr, bodyText, displayName string) (string, error) {
	if accountID == "" || emailAddr == "" {
		return "", errors.New("identity: account_id and email required")
	}
	emailLower := mail.NormalizeAddress(emailAddr)

	if id, err := r.repo.FindCustomerByEmail(ctx, accountID, emailLower); err == nil {
		return id, nil
	} else if !errors.Is(err, crm.ErrNotFound) {
		return "", fmt.Errorf("identity: email lookup: %w", err)
	}

	for _, candidate := range phone.ExtractFromText(bodyText) {
		id, err := r.repo.FindCustomerByPhone(ctx, accountID, candidate)
		if errors.Is(err, crm.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("identity: phone lookup: %w", err)
		}

		attach := crm.CustomerEmail{
			ID:         uuid.NewString(),
			AccountID:  accountID,
			CustomerID: id,
			EmailLower: emailLower,
			CreatedAt:  r.clock().UTC(),
		}
		if err := r.repo.AttachCustomerEmail(ctx, attach); err != nil && !errors.Is(err, crm.ErrDuplicate) {
			return "", fmt.Errorf("identity: attach email: %w", err)
		}
		if displayName != "" {
			if err := r.repo.SetCustomerDisplayName(ctx, accountID, id, displayName); err != nil && !errors.Is(err, crm.ErrNotFound) {
				return "", fmt.Errorf("identity: set display name: %w", err)
			}
		}
		return id, nil
	}

	return "", ErrNoMatch
}
