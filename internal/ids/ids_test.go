package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtIsUniqueAndOrdered(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewAt(at)
	b := NewAt(at)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ids minted in the same millisecond stay ordered")
}

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok := Time(NewAt(at))
	require.True(t, ok)
	assert.True(t, got.Equal(at), "unexpected timestamp: %v", got)

	_, ok = Time("not-an-id")
	assert.False(t, ok)
}
