package exchange

import (
	stderrors "errors"
	"fmt"
	"strings"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the request at the adapter boundary.
func (r OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError("PlaceMarketOrder", err)
	}
	if r.StopLoss > 0 && r.TakeProfit > 0 && r.StopLoss >= r.TakeProfit {
		return boterrors.NewValidationError("exchange", "PlaceMarketOrder",
			fmt.Sprintf("stop loss %g must be below take profit %g", r.StopLoss, r.TakeProfit))
	}
	return nil
}

// Validate checks the request and fills the default limit.
func (r *KlineRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError("GetKlines", err)
	}
	if r.Limit == 0 {
		r.Limit = 200
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return boterrors.NewValidationError("exchange", "GetKlines", "end before start")
	}
	return nil
}

func validationError(operation string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return boterrors.WrapError(err, boterrors.ErrorCategoryValidation, "exchange", operation)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return boterrors.NewValidationError("exchange", operation, strings.Join(parts, "; ")).
		WithContext("fields", len(fieldErrs))
}
