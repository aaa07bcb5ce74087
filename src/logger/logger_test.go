package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func TestSinkReachesChildrenCreatedBeforeAttachment(t *testing.T) {
	root := NewLogger("INFO", "root")
	child := root.Named("Store") // created before the sink exists

	var got []string
	root.SetSink(func(level, message string) {
		got = append(got, level+" "+message)
	})

	child.Warning("degrade rung %d applied", 2)

	require.Len(t, got, 1)
	assert.Equal(t, "WARNING [Store] degrade rung 2 applied", got[0])
}

// -----------------------------------------------------------------------------

func TestSinkSharedAcrossNamedChain(t *testing.T) {
	root := NewLogger("INFO", "root")

	var got []string
	root.SetSink(func(level, message string) {
		got = append(got, message)
	})

	grandchild := root.Named("Agent").Named("Gather")
	grandchild.Info("fetched %d signals", 3)

	require.Len(t, got, 1)
	assert.Equal(t, "[Gather] fetched 3 signals", got[0])
}

// -----------------------------------------------------------------------------

func TestLevelSuppressionSkipsSink(t *testing.T) {
	root := NewLogger("WARNING", "root")

	var got []string
	root.SetSink(func(level, message string) {
		got = append(got, message)
	})

	root.Info("below threshold")
	root.Error("above threshold")

	require.Len(t, got, 1)
	assert.Equal(t, "[root] above threshold", got[0])
}
