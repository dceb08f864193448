package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorker_HasSkill(t *testing.T) {
	tests := []struct {
		name   string
		skills string
		id     int
		want   bool
	}{
		{"single", "7", 7, true},
		{"list", "3,7,12", 12, true},
		{"whitespace", " 3 , 7 ", 7, true},
		{"no prefix match", "17,27", 7, false},
		{"empty", "", 7, false},
		{"malformed tokens dropped", "abc,,7x, 7", 7, true},
		{"only garbage", "abc,,", 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Worker{SkillIDs: tt.skills}
			assert.Equal(t, tt.want, w.HasSkill(tt.id))
		})
	}
}

func TestParseSkillSet(t *testing.T) {
	assert.Equal(t, map[int]struct{}{3: {}, 9: {}}, ParseSkillSet("3, 9,3"))
	assert.Empty(t, ParseSkillSet(" , "))
}

func TestServiceRequest_RequestedTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	start := now.Add(2 * time.Hour)

	instant := ServiceRequest{Instant: true, WindowStart: &start}
	assert.Equal(t, now, instant.RequestedTime(now))

	scheduled := ServiceRequest{WindowStart: &start}
	assert.Equal(t, start, scheduled.RequestedTime(now))

	lat, lng := 12.97, 77.59
	assert.True(t, WorkLocation{Latitude: &lat, Longitude: &lng}.HasCoordinates())
	assert.False(t, WorkLocation{Latitude: &lat}.HasCoordinates())
}
