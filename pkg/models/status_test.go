package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatus_String(t *testing.T) {
	tests := []struct {
		status BatchStatus
		want   string
	}{
		{BatchStatusUnset, "unset"},
		{BatchStatusPending, "pending"},
		{BatchStatusRunning, "running"},
		{BatchStatusCompleted, "completed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestBatchStatus_IsValid(t *testing.T) {
	tests := []struct {
		status BatchStatus
		want   bool
	}{
		{BatchStatusPending, true},
		{BatchStatusRunning, true},
		{BatchStatusCompleted, true},
		{BatchStatusUnset, false},
		{BatchStatus("cancelled"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "BatchStatus(%q).IsValid()", string(tt.status))
	}
}

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to BatchStatus
		want     bool
	}{
		{BatchStatusUnset, BatchStatusPending, true},
		{BatchStatusPending, BatchStatusRunning, true},
		{BatchStatusRunning, BatchStatusCompleted, true},
		{BatchStatusPending, BatchStatusCompleted, false},
		{BatchStatusCompleted, BatchStatusRunning, false},
		{BatchStatusCompleted, BatchStatusCompleted, false},
		{BatchStatusRunning, BatchStatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
