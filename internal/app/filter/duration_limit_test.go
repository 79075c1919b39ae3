package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/domain/song"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name          string
		config        DurationLimitConfig
		duration      int
		shouldReject  bool
		description   string
	}{
		{
			name:         "Within limits",
			config:       DurationLimitConfig{MinSeconds: 30, MaxMinutes: 10},
			duration:     180,
			shouldReject: false,
			description:  "Should accept song within min/max limits",
		},
		{
			name:         "Too short",
			config:       DurationLimitConfig{MinSeconds: 60},
			duration:     45,
			shouldReject: true,
			description:  "Should reject song shorter than min",
		},
		{
			name:         "Too long",
			config:       DurationLimitConfig{MaxMinutes: 10},
			duration:     11 * 60,
			shouldReject: true,
			description:  "Should reject song longer than max",
		},
		{
			name:         "Exact max",
			config:       DurationLimitConfig{MaxMinutes: 5},
			duration:     300,
			shouldReject: false,
			description:  "Should accept song exactly at max",
		},
		{
			name:         "No upper limit",
			config:       DurationLimitConfig{},
			duration:     5 * 3600,
			shouldReject: false,
			description:  "max_minutes of 0 means no limit",
		},
		{
			name:         "Unknown duration allowed",
			config:       DurationLimitConfig{MinSeconds: 60, MaxMinutes: 10},
			duration:     0,
			shouldReject: false,
			description:  "Unknown durations pass by default",
		},
		{
			name:         "Unknown duration rejected",
			config:       DurationLimitConfig{MaxMinutes: 10, RejectUnknown: true},
			duration:     0,
			shouldReject: true,
			description:  "reject_unknown drops songs without a duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			config := tt.config
			f.config = &config

			result := f.Check(context.Background(), Request{}, song.Song{Duration: tt.duration})

			if tt.shouldReject {
				assert.False(t, result.Accepted, tt.description)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted, tt.description)
			}
		})
	}
}

func TestDurationLimitFilter_UnconfiguredAcceptsAll(t *testing.T) {
	f := NewDurationLimitFilter()
	result := f.Check(context.Background(), Request{}, song.Song{Duration: 99999})
	assert.True(t, result.Accepted)
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		wantErr  bool
	}{
		{
			name:     "Valid config",
			settings: map[string]interface{}{"min_seconds": 30, "max_minutes": 12.5},
			wantErr:  false,
		},
		{
			name:     "String numbers are decoded",
			settings: map[string]interface{}{"max_minutes": "15"},
			wantErr:  false,
		},
		{
			name:     "Invalid min > max",
			settings: map[string]interface{}{"min_seconds": 900, "max_minutes": 10},
			wantErr:  true,
		},
		{
			name:     "Invalid negative min",
			settings: map[string]interface{}{"min_seconds": -1},
			wantErr:  true,
		},
		{
			name:     "Invalid negative max",
			settings: map[string]interface{}{"max_minutes": -1.0},
			wantErr:  true,
		},
		{
			name:     "Empty settings (no limits)",
			settings: map[string]interface{}{},
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			err := f.ValidateConfig(tt.settings)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationLimitFilter_ValidateConfigApplies(t *testing.T) {
	f := NewDurationLimitFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{"max_minutes": 1}))

	assert.False(t, f.Check(context.Background(), Request{}, song.Song{Duration: 61}).Accepted)
	assert.True(t, f.Check(context.Background(), Request{}, song.Song{Duration: 60}).Accepted)
}
