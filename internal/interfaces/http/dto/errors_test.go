package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidDelta, http.StatusBadRequest},
		{ErrCodeInvalidAmount, http.StatusBadRequest},
		{ErrCodeConcurrencyExhausted, http.StatusConflict},
		{ErrCodeDuplicateRequest, http.StatusConflict},
		{ErrCodeLogWriteFailed, http.StatusInternalServerError},
		{ErrCodeCounterUpdateFailed, http.StatusInternalServerError},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Codes outside the map degrade to 500.
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorCodeConstants(t *testing.T) {
	// A code missing from the status map would silently map to 500.
	allCodes := []string{
		ErrCodeInternal,
		ErrCodeValidation,
		ErrCodeBadRequest,
		ErrCodeInvalidJSON,
		ErrCodeNotFound,
		ErrCodeAlreadyExists,
		ErrCodeInvalidInput,
		ErrCodeInvalidDelta,
		ErrCodeInvalidAmount,
		ErrCodeConcurrencyExhausted,
		ErrCodeDuplicateRequest,
		ErrCodeLogWriteFailed,
		ErrCodeCounterUpdateFailed,
		ErrCodeUnauthorized,
		ErrCodeForbidden,
		ErrCodeRateLimited,
	}

	for _, code := range allCodes {
		t.Run(code, func(t *testing.T) {
			status, ok := ErrorCodeHTTPStatus[code]
			assert.True(t, ok, "code %s missing from ErrorCodeHTTPStatus", code)
			assert.Greater(t, status, 0)
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrCodeNotFound, "Resource not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponse(ErrCodeConcurrencyExhausted, "Conditional write did not apply")

	data, err := json.Marshal(resp)
	assert.NoError(t, err)

	var decoded Response
	err = json.Unmarshal(data, &decoded)
	assert.NoError(t, err)

	assert.False(t, decoded.Success)
	assert.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeConcurrencyExhausted, decoded.Error.Code)
	assert.Equal(t, "Conditional write did not apply", decoded.Error.Message)
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"item_id": "itm-1"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total         int64
		page          int
		pageSize      int
		expectedPages int
	}{
		{100, 1, 10, 10},
		{101, 1, 10, 11},
		{0, 1, 10, 0},
		{9, 1, 10, 1},
		{10, 1, 10, 1},
		{11, 1, 10, 2},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta([]string{"a"}, tt.total, tt.page, tt.pageSize)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Meta)
		assert.Equal(t, tt.total, resp.Meta.Total)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
	}
}
