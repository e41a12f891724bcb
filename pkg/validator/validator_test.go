package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Name            string `form:"name" validate:"required,max=100"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=4"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

type pageBody struct {
	Page int `json:"page" validate:"gte=1"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	err := Validate(signupForm{Name: "Ana", Email: "ana@example.com", Password: "1234", ConfirmPassword: "1234"})
	assert.NoError(t, err)
}

func TestValidate_UsesFormAndJSONNames(t *testing.T) {
	fields := fieldsOf(t, Validate(signupForm{Email: "ana@example.com", Password: "1234", ConfirmPassword: "1234"}))
	assert.Equal(t, "is required", fields["name"])

	fields = fieldsOf(t, Validate(pageBody{Page: 0}))
	assert.Equal(t, "must be greater than or equal to 1", fields["page"])
}

func TestValidate_PasswordMismatch(t *testing.T) {
	fields := fieldsOf(t, Validate(signupForm{Name: "Ana", Email: "ana@example.com", Password: "1234", ConfirmPassword: "4321"}))
	assert.Equal(t, "must match password", fields["confirmPassword"])
}

func TestValidate_InvalidEmailAndShortPassword(t *testing.T) {
	err := Validate(signupForm{Name: "Ana", Email: "nope", Password: "1", ConfirmPassword: "1"})
	fields := fieldsOf(t, err)
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 4 characters", fields["password"])
	assert.Contains(t, err.Error(), "field 'email'")
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("not a struct")
	require.Error(t, err)
	var valErr *ValidationError
	assert.False(t, errors.As(err, &valErr))
}
