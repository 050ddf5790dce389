package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reride/internal/types"
)

type assignPlanPayload struct {
	PlanID    string `json:"plan_id" validate:"required"`
	ExpiresAt string `json:"expires_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct(assignPlanPayload{PlanID: "pro"})
	assert.NoError(t, err)
}

func TestValidateStruct_ReportsJSONFieldNames(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct(assignPlanPayload{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationRequest, appErr.Code)

	fields, ok := appErr.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "plan_id")
	assert.NotContains(t, fields, "PlanID")
}

func TestValidateStruct_CollectsAllFailures(t *testing.T) {
	v := NewValidator(nil)

	err := v.ValidateStruct(assignPlanPayload{ExpiresAt: "not-a-timestamp"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))

	fields := appErr.Details["fields"].(map[string]any)
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "plan_id")
	assert.Contains(t, fields, "expires_at")
}
