package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

const listActiveBranches = `
SELECT branch_id
FROM staff_assignments
WHERE staff_id = $1 AND active
ORDER BY branch_id`

// StaffDirectory resolves a staff member's branch from staff_assignments.
// The database is authoritative: a claimed branch is accepted only when the
// staff member is actively assigned to it.
type StaffDirectory struct {
	db DBTX
}

var _ ports.BranchScopeResolver = (*StaffDirectory)(nil)

func NewStaffDirectory(db DBTX) *StaffDirectory {
	return &StaffDirectory{db: db}
}

func (d *StaffDirectory) ResolveBranch(ctx context.Context, staffID uuid.UUID, claimedBranch string) (string, error) {
	if staffID == uuid.Nil {
		return "", apperrors.ErrCredentialMissing
	}

	branches, err := d.activeBranches(ctx, staffID)
	if err != nil {
		return "", err
	}

	switch {
	case len(branches) == 0:
		return "", fmt.Errorf("%w: staff %s has no active assignment", apperrors.ErrBranchUnresolved, staffID)
	case claimedBranch != "":
		if !slices.Contains(branches, claimedBranch) {
			return "", fmt.Errorf("%w: staff %s is not assigned to %q", apperrors.ErrBranchUnresolved, staffID, claimedBranch)
		}
		return claimedBranch, nil
	case len(branches) == 1:
		if err := domain.ValidateBranchID(branches[0]); err != nil {
			return "", err
		}
		return branches[0], nil
	default:
		return "", fmt.Errorf("%w: staff %s is assigned to %d branches", apperrors.ErrBranchUnresolved, staffID, len(branches))
	}
}

func (d *StaffDirectory) activeBranches(ctx context.Context, staffID uuid.UUID) ([]string, error) {
	rows, err := d.db.Query(ctx, listActiveBranches, staffID)
	if err != nil {
		return nil, fmt.Errorf("listing staff assignments: %w", err)
	}

	branches, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading staff assignments: %w", err)
	}
	return branches, nil
}
