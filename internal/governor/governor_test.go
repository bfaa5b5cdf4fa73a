package governor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/document"
)

func TestRecordCallBands(t *testing.T) {
	g := New()

	assert.Equal(t, LevelGreen, g.Level())

	for i := 0; i < 49; i++ {
		ok, msg := g.RecordCall()
		require.True(t, ok)
		assert.Empty(t, msg, "call %d", i+1)
	}
	assert.Equal(t, LevelGreen, g.Level(), "49 calls stay green")

	ok, msg := g.RecordCall() // 50th
	require.True(t, ok)
	assert.Equal(t, "Note: 50 API calls remaining", msg)
	assert.Equal(t, LevelYellow, g.Level())

	for g.TotalCalls() < 79 {
		g.RecordCall()
	}
	ok, msg = g.RecordCall() // 80th
	require.True(t, ok)
	assert.Equal(t, "Warning: 20 API calls remaining today", msg)
	assert.Equal(t, LevelRed, g.Level())
}

func TestRecordCallBlocksAtLimit(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		ok, _ := g.RecordCall()
		require.True(t, ok, "call %d within budget", i+1)
	}

	assert.Equal(t, LevelBlocked, g.Level())
	assert.False(t, g.CanCall())

	ok, msg := g.RecordCall()
	assert.False(t, ok)
	assert.Equal(t, "API limit reached. Please try again tomorrow.", msg)
	assert.Equal(t, 100, g.TotalCalls(), "a denied call is not counted")
}

func TestFieldRetryBudget(t *testing.T) {
	g := New()
	kind, side := document.KindCNIC, document.SideFront

	can, remaining := g.CanRetryField(kind, side)
	assert.True(t, can)
	assert.Equal(t, 2, remaining)

	ok, msg := g.RecordFieldAttempt(kind, side)
	require.True(t, ok)
	assert.Equal(t, "1 retry remaining for this document.", msg)

	ok, msg = g.RecordFieldAttempt(kind, side)
	require.True(t, ok)
	assert.Equal(t, "This was your last attempt for this document.", msg)

	can, remaining = g.CanRetryField(kind, side)
	assert.False(t, can)
	assert.Zero(t, remaining)

	ok, msg = g.RecordFieldAttempt(kind, side)
	assert.False(t, ok)
	assert.Equal(t, "Maximum retries (2) reached for this document. Please contact support.", msg)
}

func TestFieldBudgetsAreIndependent(t *testing.T) {
	g := New()

	g.RecordFieldAttempt(document.KindCNIC, document.SideFront)
	g.RecordFieldAttempt(document.KindCNIC, document.SideFront)

	can, remaining := g.CanRetryField(document.KindCNIC, document.SideBack)
	assert.True(t, can)
	assert.Equal(t, 2, remaining)

	can, _ = g.CanRetryField(document.KindPassport, document.SideFront)
	assert.True(t, can)
}

func TestResetField(t *testing.T) {
	g := New()
	kind, side := document.KindAadhaar, document.SideFront

	g.RecordFieldAttempt(kind, side)
	g.RecordFieldAttempt(kind, side)
	can, _ := g.CanRetryField(kind, side)
	require.False(t, can)

	g.ResetField(kind, side)

	can, remaining := g.CanRetryField(kind, side)
	assert.True(t, can)
	assert.Equal(t, 2, remaining)
}

func TestResetAll(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		g.RecordCall()
	}
	g.RecordFieldAttempt(document.KindCNIC, document.SideFront)

	g.ResetAll()

	assert.Zero(t, g.TotalCalls())
	assert.Equal(t, LevelGreen, g.Level())
	can, _ := g.CanRetryField(document.KindCNIC, document.SideFront)
	assert.True(t, can)
}

func TestSnapshot(t *testing.T) {
	g := New()
	g.RecordCall()
	g.RecordCall()
	g.RecordFieldAttempt(document.KindCNIC, document.SideFront)

	snap := g.Snapshot()

	assert.Equal(t, 2, snap.TotalCalls)
	assert.Equal(t, 98, snap.Remaining)
	assert.Equal(t, LevelGreen, snap.Level)
	require.Contains(t, snap.PerField, "cnic_front")
	assert.Equal(t, 1, snap.PerField["cnic_front"].Attempts)
	assert.Equal(t, 1, snap.PerField["cnic_front"].Remaining)
}

func TestConcurrentRecordCall(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RecordCall()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, g.TotalCalls(), "the counter never overshoots the limit")
	assert.Equal(t, LevelBlocked, g.Level())
}
