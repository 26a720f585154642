package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1 sekunda"},
		{3 * time.Second, "3 sekundy"},
		{12 * time.Second, "12 sekund"},
		{45 * time.Second, "45 sekund"},
		{time.Minute, "1 minuta"},
		{90*time.Second + time.Second, "2 minuty"},
		{22 * time.Minute, "22 minuty"},
		{25 * time.Minute, "25 minut"},
		{time.Hour, "1 godzina"},
		{time.Hour + 31*time.Minute, "2 godziny"},
		{5 * time.Hour, "5 godzin"},
		{22 * time.Hour, "22 godziny"},
		{36 * time.Hour, "2 dni"},
		{24 * time.Hour, "1 dzień"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in), tt.in.String())
	}
}
