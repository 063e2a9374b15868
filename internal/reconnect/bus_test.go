package reconnect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionFiresExactlyOnce(t *testing.T) {
	b := NewBus[string]()

	evictions := 0
	b.NotifyAndReplace("u1", func() { evictions++ }, "session1")
	assert.Equal(t, 0, evictions, "first connect has nothing to evict")

	b.NotifyAndReplace("u1", func() {}, "session2")
	assert.Equal(t, 1, evictions)

	b.NotifyAndReplace("u1", func() {}, "session3")
	assert.Equal(t, 1, evictions, "replaced callback must not fire again")
}

func TestEvictionBeforeRejoinReplay(t *testing.T) {
	b := NewBus[string]()

	var order []string
	b.NotifyAndReplace("u1", func() { order = append(order, "evict") }, "old")
	b.RegisterRejoin("u1", func(s string) { order = append(order, "rejoin:"+s) })

	b.NotifyAndReplace("u1", func() {}, "new")
	require.Equal(t, []string{"evict", "rejoin:new"}, order)
}

func TestRemoveDisconnectPreventsSpuriousFire(t *testing.T) {
	b := NewBus[string]()

	fired := false
	reg := b.NotifyAndReplace("u1", func() { fired = true }, "s1")
	b.RemoveDisconnect("u1", reg)

	b.NotifyAndReplace("u1", func() {}, "s2")
	assert.False(t, fired, "gracefully removed callback must not fire on later reconnect")
}

func TestRemoveDisconnectIgnoresStaleRegistration(t *testing.T) {
	b := NewBus[string]()

	staleReg := b.NotifyAndReplace("u1", func() {}, "s1")

	fired := false
	b.NotifyAndReplace("u1", func() { fired = true }, "s2")

	// The evicted session cleaning up must not tear down the new one.
	b.RemoveDisconnect("u1", staleReg)

	b.NotifyAndReplace("u1", func() {}, "s3")
	assert.True(t, fired, "current callback should still be installed")
}

func TestRejoinReplaysToNewSession(t *testing.T) {
	b := NewBus[string]()

	var got []string
	b.RegisterRejoin("u1", func(s string) { got = append(got, s) })
	b.RegisterRejoin("u1", func(s string) { got = append(got, s+"-second") })

	b.NotifyAndReplace("u1", func() {}, "fresh")
	assert.Equal(t, []string{"fresh", "fresh-second"}, got)
}

func TestClearRejoin(t *testing.T) {
	b := NewBus[string]()

	called := false
	b.RegisterRejoin("u1", func(string) { called = true })
	b.ClearRejoin("u1")

	b.NotifyAndReplace("u1", func() {}, "s1")
	assert.False(t, called)
}

func TestClearRejoinLeavesOtherUsersAlone(t *testing.T) {
	b := NewBus[string]()

	called := false
	b.RegisterRejoin("u1", func(string) { called = true })
	b.ClearRejoin("u2")

	b.NotifyAndReplace("u1", func() {}, "s1")
	assert.True(t, called)
}
