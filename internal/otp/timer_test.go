package otp_test

import (
	"testing"
	"time"

	"github.com/kitewire/consentflow/internal/otp"
	"github.com/stretchr/testify/assert"
)

func TestTimer_Countdown(t *testing.T) {
	current := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	timer := otp.NewTimer(30*time.Second, otp.WithNow(clock))

	t.Run("Unstarted Reads Expired", func(t *testing.T) {
		assert.True(t, timer.Expired())
		assert.Zero(t, timer.Remaining())
	})

	t.Run("Start Sets Deadline", func(t *testing.T) {
		deadline := timer.Start()
		assert.Equal(t, current.Add(30*time.Second), deadline)
		assert.False(t, timer.Expired())
		assert.Equal(t, 30*time.Second, timer.Remaining())
	})

	t.Run("Counts Down", func(t *testing.T) {
		current = current.Add(20 * time.Second)
		assert.Equal(t, 10*time.Second, timer.Remaining())
		assert.False(t, timer.Expired())
	})

	t.Run("Expires", func(t *testing.T) {
		current = current.Add(15 * time.Second)
		assert.True(t, timer.Expired())
		assert.Zero(t, timer.Remaining())
	})

	t.Run("Restart Resets To Full Duration", func(t *testing.T) {
		current = current.Add(5 * time.Second)
		timer.Start()
		// Partial elapse, then restart: remaining must be the full duration again.
		current = current.Add(12 * time.Second)
		timer.Start()
		assert.Equal(t, 30*time.Second, timer.Remaining())
	})

	t.Run("Cancel Reads Expired", func(t *testing.T) {
		timer.Cancel()
		assert.True(t, timer.Expired())
	})
}
