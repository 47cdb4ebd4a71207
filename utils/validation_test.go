package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Token   string `validate:"required,len=4"`
	Gallery string `validate:"required"`
	Limit   int    `validate:"gte=0"`
	BaseURL string `validate:"omitempty,url"`
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(&sample{Token: "abcd", Gallery: "g"}))
}

func TestValidateStruct_FieldMessages(t *testing.T) {
	err := ValidateStruct(&sample{Token: "ab", Limit: -1, BaseURL: "::"})

	require.Error(t, err)
	require.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields["Token"], "exactly 4 characters")
	assert.Contains(t, fields["Gallery"], "required")
	assert.Contains(t, fields["Limit"], "greater than or equal to 0")
	assert.Contains(t, fields["BaseURL"], "valid URL")
}

func TestGetValidationFields_ForeignError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.Nil(t, GetValidationFields(errors.New("boom")))
}
