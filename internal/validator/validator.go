// Package validator checks inbound documents before they reach the ledger.
package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Compare decimals numerically so tags like gte=0 apply to money fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest checks the validate tags of req.
func ValidateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return ierr.WithError(err).
			WithHint(hintFor(err)).
			Mark(ierr.ErrInvalidItem, ierr.ErrValidation)
	}
	return nil
}

// ValidateDocument checks a document about to be saved. Items must already
// be filtered to active rows.
func ValidateDocument(doc *models.Document) error {
	if len(doc.Items) == 0 {
		return ierr.NewValidation(ierr.ErrEmptyItemSet, "Add at least one item to the bill.")
	}
	if bad, ok := lo.Find(doc.Items, func(it models.LineItem) bool { return !it.Quantity.IsPositive() }); ok {
		return ierr.NewValidation(ierr.ErrNonPositiveQuantity,
			fmt.Sprintf("Enter a quantity for %q.", strings.TrimSpace(bad.Description)))
	}
	return ValidateRequest(doc)
}

func hintFor(err error) string {
	var errs validator.ValidationErrors
	if !ierr.As(err, &errs) || len(errs) == 0 {
		return "Request validation failed."
	}
	fe := errs[0]
	// Drop the root struct name: "Document.items[0].rate" -> "items[0].rate".
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative.", field)
	case "datetime":
		return fmt.Sprintf("%s must look like 2026-01-31.", field)
	}
	return fmt.Sprintf("%s is invalid.", field)
}
