package domain

import (
	"crypto/rand"
	"encoding/base32"
	"regexp"

	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
)

// OrderNumberPrefix is used by NewOrderNumber.
const OrderNumberPrefix = "ORD"

// orderNumberEntropyBytes gives 80 random bits (16 base32 characters).
const orderNumberEntropyBytes = 10

var (
	orderNumberRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,10}-[A-Za-z0-9]{1,40}$`)
	orderEncoding    = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// ValidateOrderNumber checks the format only. Existence is a separate concern.
func ValidateOrderNumber(orderNumber string) error {
	if !orderNumberRegex.MatchString(orderNumber) {
		return apperrors.ErrOrderNumberFormat
	}
	return nil
}

// NewOrderNumber returns an unguessable order number. The order number is the
// bearer capability for customer tracking, so it must never be sequential.
func NewOrderNumber() (string, error) {
	buf := make([]byte, orderNumberEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return OrderNumberPrefix + "-" + orderEncoding.EncodeToString(buf), nil
}
