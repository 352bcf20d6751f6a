package validation

import (
	"testing"

	"handyhub-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string  `json:"title" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Radius   float64 `json:"target_radius_km" validate:"gt=0"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Title: "x", Quantity: 1, Radius: 2}))
}

func TestStruct_ReportsJSONFieldName(t *testing.T) {
	err := Struct(sample{Title: "x", Quantity: 0, Radius: 2})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, "must be at least 1", ve.Reason)
}

func TestStruct_Required(t *testing.T) {
	err := Struct(sample{Quantity: 1, Radius: 1})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)
	assert.Equal(t, "is required", ve.Reason)
}
