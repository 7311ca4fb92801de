package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_HourlySchedule(t *testing.T) {
	ref := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 * * * *", ref)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 30*time.Minute, info.TimeSinceLast)
	assert.Equal(t, 30*time.Minute, info.TimeUntilNext)
}

func TestGetTriggerInfo_SixFieldExpression(t *testing.T) {
	ref := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 0 3 * * *", ref)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC), info.Last)
}

func TestGetTriggerInfo_InvalidExpression(t *testing.T) {
	_, err := GetTriggerInfo("not a cron", time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}
