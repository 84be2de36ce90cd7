package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"crawford.app/podcastserver/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCooldown_WithoutRedisAllows(t *testing.T) {
	var nilCooldown *Cooldown
	tests := []struct {
		name string
		c    *Cooldown
	}{
		{name: "nil cooldown", c: nilCooldown},
		{name: "nil client", c: NewCooldown(nil, 10*time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				release, err := tt.c.Acquire(context.Background(), 1, "upload_podcast")
				require.NoError(t, err)
				require.NotNil(t, release)
				release()
			}
		})
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Action: "create_stream", RetryAfter: 2500 * time.Millisecond}

	assert.True(t, errors.Is(err, apperror.ErrRateLimitExceeded))
	assert.Equal(t, 3, err.RetryAfterSeconds())
	assert.Equal(t, "please wait 3 seconds before trying to create_stream again", err.Error())
}
