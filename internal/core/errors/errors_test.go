package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	assert.Nil(t, Identity(nil))

	err := Identity(ErrBranchInvalid)
	assert.ErrorIs(t, err, ErrIdentityInvalid)
	assert.ErrorIs(t, err, ErrBranchInvalid)

	// Wrapping twice does not stack the prefix.
	assert.Equal(t, err, Identity(err))
}

func TestNewIdentityError(t *testing.T) {
	appErr := NewIdentityError(fmt.Errorf("token: %w", ErrCredentialMissing), "Invalid or expired token")

	assert.Equal(t, 401, appErr.StatusCode)
	assert.Equal(t, "IDENTITY_INVALID", appErr.Code)
	assert.Equal(t, "Invalid or expired token", appErr.Error())
	assert.True(t, errors.Is(appErr, ErrIdentityInvalid))
	assert.True(t, errors.Is(appErr, ErrCredentialMissing))
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	assert.False(t, v.HasErrors())

	v.Add("scope.branch_id", "must be a valid branch id")
	v.Add("scope.branch_id", "is required")
	v.Add("kind", "is required")

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors["scope.branch_id"], 2)
	assert.Equal(t, "validation failed: 2 field(s) have errors", v.Error())
}
