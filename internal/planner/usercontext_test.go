package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"planner-server/internal/config"
)

func TestEstimateTravelTime_KnownPairSymmetric(t *testing.T) {
	car := Transportation{Mode: "car", Emoji: "🚗"}

	assert.Equal(t, 25, EstimateTravelTime("Ksar Hellal", "Sayeda", car))
	assert.Equal(t, 25, EstimateTravelTime("Sayeda", "Ksar Hellal", car))
	assert.Equal(t, 25, EstimateTravelTime("ksar hellal", "SAYEDA", car))
}

func TestEstimateTravelTime_SamePlaceIsZero(t *testing.T) {
	car := Transportation{Mode: "car", Emoji: "🚗"}
	assert.Equal(t, 0, EstimateTravelTime("Sousse", "sousse", car))
}

func TestEstimateTravelTime_UnknownPlaceGetsFallback(t *testing.T) {
	car := Transportation{Mode: "car", Emoji: "🚗"}
	got := EstimateTravelTime("Ksar Hellal", "Atlantis", car)
	assert.Equal(t, 30, got)
}

func TestEstimateTravelTime_TransportFactorApplied(t *testing.T) {
	walk := Transportation{Mode: "walk", Emoji: "🚶"}
	// 25 минут на машине x5.0 пешком
	assert.Equal(t, 125, EstimateTravelTime("Ksar Hellal", "Sayeda", walk))
}

func TestEstimateTravelTime_UnknownModeFallsBackToCar(t *testing.T) {
	horse := Transportation{Mode: "horse"}
	assert.Equal(t, 25, EstimateTravelTime("Ksar Hellal", "Sayeda", horse))
}

func TestRequiresTravel(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"gym at 6am", false},
		{"coffee in Sayeda", true},
		{"go to the mall", true},
		{"trip to Hammamet next week", true},
		{"chill at home in Ksar Hellal", false},
		{"read a book tonight", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RequiresTravel(tc.text, "Ksar Hellal"), "text: %s", tc.text)
	}
}

func TestNewUserContext_UnknownTransportDefaultsToCar(t *testing.T) {
	uc := NewUserContext(&config.Config{
		HomeLocation:    "Ksar Hellal",
		Transport:       "submarine",
		DefaultTimezone: "Africa/Tunis",
		BufferMinutes:   15,
		Locale:          "tn",
	})

	assert.Equal(t, "car", uc.Transport.Mode)
	assert.Equal(t, "🚗", uc.Transport.Emoji)
	assert.True(t, uc.DefaultLocation().IsHome)
}
