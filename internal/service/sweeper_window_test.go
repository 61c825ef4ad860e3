package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"teamgate/internal/model"
)

func TestInActiveWindow(t *testing.T) {
	cfg := model.AutoKickConfig{
		StartTime: "09:00",
		EndTime:   "22:00",
		Timezone:  "UTC",
	}

	at := func(hour, min int) time.Time {
		return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
	}

	assert.True(t, inActiveWindow(cfg, at(9, 0)))
	assert.True(t, inActiveWindow(cfg, at(15, 30)))
	assert.True(t, inActiveWindow(cfg, at(22, 0)))
	assert.False(t, inActiveWindow(cfg, at(8, 59)))
	assert.False(t, inActiveWindow(cfg, at(22, 1)))
	assert.False(t, inActiveWindow(cfg, at(3, 0)))
}

func TestInActiveWindow_WrapsMidnight(t *testing.T) {
	cfg := model.AutoKickConfig{
		StartTime: "22:00",
		EndTime:   "06:00",
		Timezone:  "UTC",
	}

	at := func(hour, min int) time.Time {
		return time.Date(2025, 6, 15, hour, min, 0, 0, time.UTC)
	}

	assert.True(t, inActiveWindow(cfg, at(23, 0)))
	assert.True(t, inActiveWindow(cfg, at(2, 0)))
	assert.True(t, inActiveWindow(cfg, at(6, 0)))
	assert.False(t, inActiveWindow(cfg, at(12, 0)))
	assert.False(t, inActiveWindow(cfg, at(21, 59)))
}

func TestInActiveWindow_TimezoneApplied(t *testing.T) {
	cfg := model.AutoKickConfig{
		StartTime: "09:00",
		EndTime:   "22:00",
		Timezone:  "Asia/Shanghai",
	}

	// 02:00 UTC is 10:00 in Shanghai, inside the window.
	utcMorning := time.Date(2025, 6, 15, 2, 0, 0, 0, time.UTC)
	assert.True(t, inActiveWindow(cfg, utcMorning))

	// 16:00 UTC is 00:00 in Shanghai, outside the window.
	utcAfternoon := time.Date(2025, 6, 15, 16, 0, 0, 0, time.UTC)
	assert.False(t, inActiveWindow(cfg, utcAfternoon))
}

func TestRandomInterval_StaysInBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := randomInterval(90, 120)
		assert.GreaterOrEqual(t, d, 90*time.Second)
		assert.LessOrEqual(t, d, 120*time.Second)
	}

	// Degenerate bounds collapse to the minimum.
	assert.Equal(t, 90*time.Second, randomInterval(90, 90))
	assert.Equal(t, 1*time.Second, randomInterval(0, 0))
}
