package validation

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
)

// maxBodyBytes bounds a single collaborator request body.
const maxBodyBytes = 64 << 10

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the gateway's custom tags registered:
// branch_id, order_number and event_kind.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)

		_ = v.RegisterValidation("branch_id", func(fl validator.FieldLevel) bool {
			return domain.ValidateBranchID(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("order_number", func(fl validator.FieldLevel) bool {
			return domain.ValidateOrderNumber(fl.Field().String()) == nil
		})
		_ = v.RegisterValidation("event_kind", func(fl validator.FieldLevel) bool {
			return domain.EventKind(fl.Field().String()).IsNotification()
		})

		validate = v
	})
	return validate
}

// Struct validates s and converts failures to field-level ValidationErrors.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewBadRequestError(err, "Invalid request")
	}

	out := apperrors.NewValidationErrors()
	for _, fe := range fieldErrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// DecodeAndValidate decodes the JSON request body and validates it
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var req T

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}

	if err := Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldPath drops the top-level struct name: "eventRequest.scope.branch_id" -> "scope.branch_id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "branch_id":
		return "Must be a valid branch id"
	case "order_number":
		return "Must be a valid order number"
	case "event_kind":
		return "Must be one of: " + strings.Join(notificationKindNames(), ", ")
	case "required_without":
		return "Either this field or " + fe.Param() + " is required"
	default:
		return "Failed the " + fe.Tag() + " check"
	}
}

func notificationKindNames() []string {
	return []string{
		string(domain.EventOrderStatusUpdated),
		string(domain.EventOrderReady),
		string(domain.EventNewOrder),
		string(domain.EventKitchenUpdate),
		string(domain.EventNewReservation),
		string(domain.EventTableStatusUpdated),
	}
}
