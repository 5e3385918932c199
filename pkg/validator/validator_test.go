package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type positionRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func TestValidate_Valid(t *testing.T) {
	req := positionRequest{ProductID: "7f1b3c9e-4f4a-4c38-9d7a-2b1a8a3f0c11", Quantity: 2, Date: "2024-05-01"}
	assert.NoError(t, Validate(req))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(positionRequest{ProductID: "nope", Quantity: 0, Date: "01.05.2024"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := verr.Fields()
	assert.Equal(t, "must be a valid UUID", fields["product_id"])
	assert.Equal(t, "must be greater than 0", fields["quantity"])
	assert.Equal(t, "must be a date in the format 2006-01-02", fields["date"])
	assert.Contains(t, err.Error(), "field 'quantity' must be greater than 0")
}

func TestValidate_Required(t *testing.T) {
	err := Validate(positionRequest{Quantity: 1})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"product_id": "is required"}, verr.Fields())
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate(42)
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}
