package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitingScore_PriorityWinsOverSeq(t *testing.T) {
	// A lower priority must outrank any sequence number a long-lived
	// deployment can accumulate, including counters past 2^31.
	bigSeq := int64(1)<<31 + 12345
	require.Less(t, waitingScore(0, bigSeq), waitingScore(1, 1))
	require.Less(t, waitingScore(-1, bigSeq), waitingScore(0, 1))

	// Within a priority, enqueue order still decides.
	require.Less(t, waitingScore(5, bigSeq), waitingScore(5, bigSeq+1))

	// Distinct (priority, seq) pairs never collide at the documented
	// bounds.
	require.NotEqual(t, waitingScore(4095, 1), waitingScore(4096, 0))
}
