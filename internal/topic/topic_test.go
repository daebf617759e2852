package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "nil input yields empty set",
			input: nil,
			want:  nil,
		},
		{
			name:  "unknown topics dropped silently",
			input: []string{"fills", "price_alerts", "risk_events"},
			want:  []string{"fills", "risk_events"},
		},
		{
			name:  "all unknown yields empty set",
			input: []string{"foo", "bar"},
			want:  nil,
		},
		{
			name:  "case and whitespace normalized",
			input: []string{" Fills ", "RISK_EVENTS"},
			want:  []string{"fills", "risk_events"},
		},
		{
			name:  "duplicates collapse, first-seen order kept",
			input: []string{"security", "fills", "security", "fills"},
			want:  []string{"security", "fills"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.input)
			assert.Equal(t, tc.want, got)

			// Output is always a subset of the catalog.
			for _, topic := range got {
				assert.True(t, Known(topic))
			}

			// Idempotent: normalizing a normalized list is a no-op.
			assert.Equal(t, got, Normalize(got))
		})
	}
}

func TestAllTopicsAreKnown(t *testing.T) {
	for _, topic := range All() {
		assert.True(t, Known(topic))
	}
	assert.Len(t, All(), len(catalog))
}
