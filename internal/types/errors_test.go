package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErrorCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrorCodeStageFailed, http.StatusInternalServerError},
		{ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErrorCode(tt.code))
		})
	}
}

func TestNewStageFailedError(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	err := NewStageFailedError("extracting_clips", cause)

	assert.Equal(t, ErrorCodeStageFailed, err.Code)
	assert.Equal(t, "ffmpeg exited with status 1", err.Message)
	assert.Equal(t, "extracting_clips", err.Context["stage"])
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrorCodeStageFailed))
}
