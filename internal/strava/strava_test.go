package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRun(t *testing.T) {
	a := &Activity{
		ID:         12345,
		SportType:  "TrailRun",
		StartDate:  time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC),
		Distance:   8046.72, // 5 miles
		MovingTime: 2700,
	}

	n := Normalize(a)
	assert.Equal(t, "Run", n.SportType)
	assert.InDelta(t, 5.0, n.Metrics["miles"], 0.001)
	assert.InDelta(t, 8.047, n.Metrics["kilometers"], 0.001)
	assert.InDelta(t, 45.0, n.Metrics["minutes"], 0.001)
	assert.Equal(t, time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC), n.LoggedDate)
}

func TestNormalizeStationaryWorkoutFallsBackToElapsedTime(t *testing.T) {
	a := &Activity{SportType: "WeightTraining", ElapsedTime: 1800}

	n := Normalize(a)
	assert.Equal(t, "Strength", n.SportType)
	assert.InDelta(t, 30.0, n.Metrics["minutes"], 0.001)
	_, hasMiles := n.Metrics["miles"]
	assert.False(t, hasMiles)
}

func TestNormalizeUnknownSportPassesThrough(t *testing.T) {
	n := Normalize(&Activity{SportType: "Windsurf", MovingTime: 600})
	assert.Equal(t, "Windsurf", n.SportType)
}

func TestGetActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/activities/42", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(Activity{ID: 42, SportType: "Run", Distance: 1609.344})
	}))
	defer srv.Close()

	c := NewClient("id", "secret")
	c.baseURL = srv.URL

	a, err := c.GetActivity(context.Background(), "good-token", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)

	_, err = c.GetActivity(context.Background(), "stale-token", 42)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("refresh_token") != "valid-refresh" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "fresh",
			RefreshToken: "next-refresh",
			ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
		})
	}))
	defer srv.Close()

	c := NewClient("id", "secret")
	c.baseURL = srv.URL

	tok, err := c.RefreshToken(context.Background(), "valid-refresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)

	_, err = c.RefreshToken(context.Background(), "revoked")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
