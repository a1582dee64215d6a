package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ssotgen/pkg/llm/llmerrors"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       llmerrors.ErrorType
	}{
		{"deadline", context.DeadlineExceeded, 0, llmerrors.ErrorTypeTransient},
		{"canceled", context.Canceled, 0, llmerrors.ErrorTypeTransient},
		{"status 429", errors.New("request failed"), 429, llmerrors.ErrorTypeRateLimit},
		{"status 401", errors.New("request failed"), 401, llmerrors.ErrorTypeAuth},
		{"status 500", errors.New("request failed"), 500, llmerrors.ErrorTypeTransient},
		{"status 400", errors.New("request failed"), 400, llmerrors.ErrorTypeBadPrompt},
		{"connection text", errors.New("connection reset by peer"), 0, llmerrors.ErrorTypeTransient},
		{"rate text", errors.New("rate limit reached"), 0, llmerrors.ErrorTypeRateLimit},
		{"auth text", errors.New("invalid api key"), 0, llmerrors.ErrorTypeAuth},
		{"opaque", errors.New("something odd"), 0, llmerrors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyProviderError(tt.err, tt.statusCode)
			assert.Equal(t, tt.want, got.Type)
		})
	}
}
