package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JanBecker/ClipFox/app/models"
	"gorm.io/gorm"
)

// ErrInsufficientCredits is an expected business condition, not an internal
// failure. Callers surface it as an upgrade-required signal.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Service provides the append-only credit ledger. The balance is always the
// sum of all deltas for a user; no mutable balance field exists anywhere, so
// there is nothing to drift.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Grant appends a positive entry. The caller has already decided the grant is
// warranted (plan activation, renewal, admin action).
func (s *Service) Grant(ctx context.Context, userID uint, delta int64, reason, linkedID string) error {
	if err := validateInput(userID, delta, reason); err != nil {
		return err
	}
	return s.repo.CreateEntry(ctx, &models.CreditLedgerEntry{
		UserID:   userID,
		Delta:    delta,
		Reason:   strings.TrimSpace(reason),
		LinkedID: strings.TrimSpace(linkedID),
	})
}

// GrantOnce appends a positive entry unless one already exists for the same
// user and linked id. Event processing retries after a partial failure go
// through here so a replayed event can never grant twice.
func (s *Service) GrantOnce(ctx context.Context, userID uint, delta int64, reason, linkedID string) error {
	if err := validateInput(userID, delta, reason); err != nil {
		return err
	}
	link := strings.TrimSpace(linkedID)
	if link == "" {
		return errors.New("linked_id is required")
	}

	exists, err := s.repo.HasEntryWithLink(ctx, userID, link)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.repo.CreateEntry(ctx, &models.CreditLedgerEntry{
		UserID:   userID,
		Delta:    delta,
		Reason:   strings.TrimSpace(reason),
		LinkedID: link,
	})
}

// Consume appends a negative entry after an advisory balance check.
//
// The check is not a transactional guard: concurrent consumers can race past
// it and push the balance transiently negative. That is an accepted business
// risk; the ledger stays correct because the balance is still the exact sum
// of what was granted and spent.
func (s *Service) Consume(ctx context.Context, userID uint, delta int64, reason, linkedID string) error {
	if err := validateInput(userID, delta, reason); err != nil {
		return err
	}

	balance, err := s.repo.SumDeltas(ctx, userID)
	if err != nil {
		return err
	}
	if balance < delta {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCredits, balance, delta)
	}

	return s.repo.CreateEntry(ctx, &models.CreditLedgerEntry{
		UserID:   userID,
		Delta:    -delta,
		Reason:   strings.TrimSpace(reason),
		LinkedID: strings.TrimSpace(linkedID),
	})
}

// Balance returns SUM(delta) over the user's entries, recomputed on read.
func (s *Service) Balance(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, errors.New("user_id is required")
	}
	return s.repo.SumDeltas(ctx, userID)
}

func validateInput(userID uint, delta int64, reason string) error {
	if userID == 0 {
		return errors.New("user_id is required")
	}
	if delta <= 0 {
		return fmt.Errorf("delta must be positive, got %d", delta)
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("reason is required")
	}
	return nil
}
