package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

// ClaimsScopeResolver trusts the branch carried by a signed credential. It is
// used when no staff directory is configured.
type ClaimsScopeResolver struct{}

var _ ports.BranchScopeResolver = ClaimsScopeResolver{}

func (ClaimsScopeResolver) ResolveBranch(_ context.Context, staffID uuid.UUID, claimedBranch string) (string, error) {
	if staffID == uuid.Nil {
		return "", apperrors.ErrCredentialMissing
	}
	if claimedBranch == "" {
		return "", apperrors.ErrBranchUnresolved
	}
	if err := domain.ValidateBranchID(claimedBranch); err != nil {
		return "", err
	}
	return claimedBranch, nil
}
