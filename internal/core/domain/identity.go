package domain

import (
	"fmt"
	"regexp"

	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
)

// Role is the staff role carried by an authenticated credential.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
)

var validRoles = map[Role]bool{
	RoleOwner:   true,
	RoleManager: true,
	RoleCashier: true,
	RoleWaiter:  true,
	RoleKitchen: true,
}

// IsValid reports whether r is one of the known staff roles.
func (r Role) IsValid() bool {
	return validRoles[r]
}

var branchIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateBranchID checks the branch identifier format.
func ValidateBranchID(branchID string) error {
	if !branchIDRegex.MatchString(branchID) {
		return apperrors.ErrBranchInvalid
	}
	return nil
}

// IdentityKind distinguishes the two mutually exclusive identity variants.
type IdentityKind string

const (
	IdentityStaff    IdentityKind = "staff"
	IdentityCustomer IdentityKind = "customer"
)

// Identity is the authenticated identity of a connection. It never changes
// for the lifetime of the connection.
type Identity struct {
	Kind IdentityKind

	// Staff variant
	StaffID  string
	Role     Role
	BranchID string

	// Customer variant
	OrderNumber string
}

// NewStaffIdentity builds a validated staff identity.
func NewStaffIdentity(staffID string, role Role, branchID string) (Identity, error) {
	id := Identity{
		Kind:     IdentityStaff,
		StaffID:  staffID,
		Role:     role,
		BranchID: branchID,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// NewCustomerIdentity builds a validated order-tracking identity.
func NewCustomerIdentity(orderNumber string) (Identity, error) {
	id := Identity{
		Kind:        IdentityCustomer,
		OrderNumber: orderNumber,
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate enforces the variant rules. All failures match apperrors.ErrIdentityInvalid.
func (i Identity) Validate() error {
	switch i.Kind {
	case IdentityStaff:
		if i.StaffID == "" {
			return apperrors.Identity(apperrors.ErrCredentialMissing)
		}
		if !i.Role.IsValid() {
			return apperrors.Identity(apperrors.ErrRoleInvalid)
		}
		if err := ValidateBranchID(i.BranchID); err != nil {
			return apperrors.Identity(err)
		}
		if i.OrderNumber != "" {
			return apperrors.Identity(fmt.Errorf("staff identity cannot carry an order number"))
		}
		return nil

	case IdentityCustomer:
		if err := ValidateOrderNumber(i.OrderNumber); err != nil {
			return apperrors.Identity(err)
		}
		if i.StaffID != "" || i.Role != "" || i.BranchID != "" {
			return apperrors.Identity(fmt.Errorf("customer identity cannot carry staff fields"))
		}
		return nil

	default:
		return apperrors.Identity(fmt.Errorf("unknown identity kind %q", i.Kind))
	}
}

// IsStaff reports whether the identity is the staff variant.
func (i Identity) IsStaff() bool {
	return i.Kind == IdentityStaff
}

// IsCustomer reports whether the identity is the order-tracking variant.
func (i Identity) IsCustomer() bool {
	return i.Kind == IdentityCustomer
}

// HomeRoom is the only room this identity may ever join.
func (i Identity) HomeRoom() RoomID {
	if i.IsStaff() {
		return StaffRoom(i.BranchID)
	}
	return OrderRoom(i.OrderNumber)
}
