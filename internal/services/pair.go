package services

import (
	"context"
	"fmt"
	"strings"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PairService handles pair-related business logic
type PairService struct {
	pairRepo repository.PairStore
	userRepo repository.UserStore
	clock    clockwork.Clock
}

// NewPairService creates a new pair service
func NewPairService(pairRepo repository.PairStore, userRepo repository.UserStore, clock clockwork.Clock) *PairService {
	return &PairService{
		pairRepo: pairRepo,
		userRepo: userRepo,
		clock:    clock,
	}
}

// CreatePair links the caller with the owner of partnerCode
func (s *PairService) CreatePair(ctx context.Context, userAID, partnerCode string) (*models.Pair, error) {
	partnerCode = strings.ToUpper(strings.TrimSpace(partnerCode))
	if len(partnerCode) != codeLength || strings.Trim(partnerCode, codeChars) != "" {
		return nil, models.ErrInvalidCode
	}

	partnerUser, err := s.userRepo.GetByCode(ctx, partnerCode)
	if err != nil {
		return nil, fmt.Errorf("partner not found: %w", err)
	}
	userBID := partnerUser.ID

	if userAID == userBID {
		return nil, models.ErrSelfPair
	}

	hasPair, err := s.pairRepo.UserHasPair(ctx, userAID)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user has pair: %w", err)
	}
	if hasPair {
		return nil, models.ErrAlreadyPaired
	}

	partnerHasPair, err := s.pairRepo.UserHasPair(ctx, userBID)
	if err != nil {
		return nil, fmt.Errorf("failed to check if partner has pair: %w", err)
	}
	if partnerHasPair {
		return nil, fmt.Errorf("partner is already in a pair: %w", models.ErrAlreadyPaired)
	}

	// user_a_id is the lexicographically smaller id
	if userAID > userBID {
		userAID, userBID = userBID, userAID
	}

	pair := &models.Pair{
		ID:        uuid.New().String(),
		UserAID:   userAID,
		UserBID:   userBID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.pairRepo.Create(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to create pair: %w", err)
	}
	return pair, nil
}

// DeletePair removes a pair the user belongs to. Both members lose premium access.
func (s *PairService) DeletePair(ctx context.Context, pairID, userID string) (*models.Pair, error) {
	pair, err := s.pairRepo.GetByID(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if pair.PartnerOf(userID) == "" {
		return nil, models.ErrNotPairMember
	}

	if err := s.pairRepo.Delete(ctx, pairID); err != nil {
		return nil, fmt.Errorf("failed to delete pair: %w", err)
	}

	if err := s.userRepo.SetPaid(ctx, false, pair.UserAID, pair.UserBID); err != nil {
		log.Error().Err(err).Str("pair_id", pairID).Msg("Failed to revoke premium after unpair")
		return pair, fmt.Errorf("failed to revoke premium: %w", err)
	}
	return pair, nil
}

// GetPairByUserID returns the pair a user belongs to
func (s *PairService) GetPairByUserID(ctx context.Context, userID string) (*models.Pair, error) {
	return s.pairRepo.GetByUserID(ctx, userID)
}

// PartnerID returns the user's partner, or "" when unpaired
func (s *PairService) PartnerID(ctx context.Context, userID string) string {
	pair, err := s.pairRepo.GetByUserID(ctx, userID)
	if err != nil {
		return ""
	}
	return pair.PartnerOf(userID)
}
