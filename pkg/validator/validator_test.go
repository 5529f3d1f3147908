package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type invitePayload struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := invitePayload{Name: "Alice", Email: "alice@example.com", Quantity: 2}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(invitePayload{Name: "   ", Email: "invalid", Quantity: 0})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := vErrs.Fields()
	require.Equal(t, "name is required", fields["name"])
	require.Equal(t, "email must be a valid email address", fields["email"])
	require.Equal(t, "quantity must be at least 1", fields["quantity"])
}

func TestValidateVar(t *testing.T) {
	require.NoError(t, ValidateVar("action", "upload_completed", "oneof=upload_completed headshots_received"))

	err := ValidateVar("action", "other", "oneof=upload_completed headshots_received")
	require.Error(t, err)
	require.Contains(t, err.Error(), "action must be one of")
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("credits_even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	})
	require.NoError(t, err)

	type custom struct {
		Value int `validate:"credits_even"`
	}

	require.NoError(t, ValidateStruct(custom{Value: 4}))
	require.Error(t, ValidateStruct(custom{Value: 3}))
}
