package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/ports"
	"github.com/strifelab/lobbyd/internal/protocol"
)

// fakeConn records everything a room pushes at a session.
type fakeConn struct {
	mu     sync.Mutex
	msgs   []protocol.Response
	closed bool
}

func (c *fakeConn) Send(resp protocol.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, resp)
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) countOf(typ string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastOf(typ string) (protocol.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == typ {
			return c.msgs[i], true
		}
	}
	return protocol.Response{}, false
}

func newTestRegistry(portCount int) (*Registry, *Bus, *ports.Allocator) {
	alloc := ports.New(10000, 10000+portCount-1)
	bus := NewBus()
	reg := NewRegistry(alloc, bus, zap.NewNop(), ServerConfig{
		Executable: "/nonexistent/game-server",
		PublicIP:   "192.0.2.1",
	})
	return reg, bus, alloc
}

func newTestPlayer(id string) (*Player, *fakeConn) {
	conn := &fakeConn{}
	return &Player{
		User: protocol.UserInfo{UserID: id, Name: id},
		Conn: conn,
	}, conn
}

func mustCreateRoom(t *testing.T, reg *Registry, host *Player, name string) *Room {
	t.Helper()
	r, ok := reg.CreateRoom(host, name)
	require.True(t, ok)
	return r
}

func TestCreateRoomHostIsFirstMember(t *testing.T) {
	reg, _, alloc := newTestRegistry(4)
	host, conn := newTestPlayer("A")

	r := mustCreateRoom(t, reg, host, "Alpha")

	assert.Equal(t, "A", r.HostID())
	assert.Equal(t, 1, r.MemberCount())
	assert.True(t, alloc.InUse(r.Port()))
	assert.Same(t, r, reg.RoomOf(host))

	team, ok := r.TeamOf("A")
	require.True(t, ok)
	assert.Equal(t, 0, team, "first member lands on team 0")
	assert.Equal(t, 1, conn.countOf(protocol.PushRoomUpdate))
}

func TestTeamBalancingNeverSkews(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("p0")
	r := mustCreateRoom(t, reg, host, "Balance")

	for i := 1; i < MaxMembers; i++ {
		p, _ := newTestPlayer(fmt.Sprintf("p%d", i))
		ok, msg := r.AddPlayer(p)
		require.True(t, ok, msg)

		var zero, one int
		for _, pl := range r.Info().Players {
			if pl.Team == 0 {
				zero++
			} else {
				one++
			}
		}
		diff := zero - one
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 1, "after %d joins", i+1)
	}
}

func TestTeamBalancingTieGoesToTeamZero(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, _ := newTestPlayer("B")
	ok, _ := r.AddPlayer(b)
	require.True(t, ok)
	team, _ := r.TeamOf("B")
	assert.Equal(t, 1, team, "second join balances to team 1")

	c, _ := newTestPlayer("C")
	ok, _ = r.AddPlayer(c)
	require.True(t, ok)
	team, _ = r.TeamOf("C")
	assert.Equal(t, 0, team, "1/1 tie breaks to team 0")
}

func TestAddPlayerDuplicateIdentity(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	dup, _ := newTestPlayer("A")
	ok, msg := r.AddPlayer(dup)
	assert.False(t, ok)
	assert.Equal(t, "Player already joined!", msg)
	assert.Equal(t, 1, r.MemberCount())
}

func TestAddPlayerRoomFull(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("p0")
	r := mustCreateRoom(t, reg, host, "Full")

	for i := 1; i < MaxMembers; i++ {
		p, _ := newTestPlayer(fmt.Sprintf("p%d", i))
		ok, _ := r.AddPlayer(p)
		require.True(t, ok)
	}

	extra, _ := newTestPlayer("p10")
	ok, msg := r.AddPlayer(extra)
	assert.False(t, ok)
	assert.Equal(t, "Room is full!", msg)
	assert.Equal(t, MaxMembers, r.MemberCount())
}

func TestUpdateTeam(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, conn := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	assert.False(t, r.UpdateTeam("ghost", 1))

	updates := conn.countOf(protocol.PushRoomUpdate)
	require.True(t, r.UpdateTeam("A", 1))
	team, _ := r.TeamOf("A")
	assert.Equal(t, 1, team)
	assert.Equal(t, updates+1, conn.countOf(protocol.PushRoomUpdate))
}

func TestRemovePlayerPromotesEarliestJoiner(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, _ := newTestPlayer("B")
	c, _ := newTestPlayer("C")
	r.AddPlayer(b)
	r.AddPlayer(c)

	require.True(t, r.RemovePlayer("A", false))
	assert.Equal(t, "B", r.HostID(), "earliest remaining member becomes host")
	assert.Nil(t, reg.RoomOf(host))
}

func TestKickSendsNotification(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, bConn := newTestPlayer("B")
	r.AddPlayer(b)

	require.True(t, r.RemovePlayer("B", true))
	kicked, ok := bConn.lastOf(protocol.PushPlayerKicked)
	require.True(t, ok)
	assert.Equal(t, "You have been kicked by the host!", kicked.Message)
	assert.Nil(t, reg.RoomOf(b))
	assert.Equal(t, 1, r.MemberCount())
}

func TestEmptyRoomDestroyedAndPortReleased(t *testing.T) {
	reg, _, alloc := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")
	port := r.Port()

	require.True(t, r.RemovePlayer("A", false))

	assert.False(t, alloc.InUse(port))
	_, found := reg.Get(r.ID())
	assert.False(t, found)
	assert.Empty(t, reg.List().List)
}

func TestRemoveAbsentPlayer(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	assert.False(t, r.RemovePlayer("ghost", false))
}

func TestCanStartHostOnly(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, _ := newTestPlayer("B")
	r.AddPlayer(b)

	assert.True(t, r.CanStart("A"))
	assert.False(t, r.CanStart("B"))
}

func TestStartGameTwiceFails(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("H")
	r := mustCreateRoom(t, reg, host, "Beta")

	require.True(t, r.StartGame("H"))
	assert.True(t, r.Started())

	assert.False(t, r.StartGame("H"), "double start must fail")
	assert.True(t, r.Started(), "state unchanged by the failed start")
}

func TestStartGameNonHostFails(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, _ := newTestPlayer("B")
	r.AddPlayer(b)

	assert.False(t, r.StartGame("B"))
	assert.False(t, r.Started())
}

func TestStartedRoomRejectsStrangers(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")
	require.True(t, r.StartGame("A"))

	stranger, _ := newTestPlayer("B")
	ok, msg := r.AddPlayer(stranger)
	assert.False(t, ok)
	assert.Equal(t, "You cannot join the room as the game has already started.", msg)
}

func TestStartedRoomRejectsLeave(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")
	require.True(t, r.StartGame("A"))

	assert.False(t, r.RemovePlayer("A", false), "membership stays parked while the game runs")
	assert.Equal(t, 1, r.MemberCount())
}

func TestRejoinReplacesConnectionKeepsTeam(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	host, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, _ := newTestPlayer("B")
	r.AddPlayer(b)
	require.True(t, r.UpdateTeam("B", 1))
	require.True(t, r.StartGame("A"))

	fresh, freshConn := newTestPlayer("B")
	ok, msg := r.AddPlayer(fresh)
	require.True(t, ok)
	assert.Equal(t, "Rejoin room success", msg)
	assert.Same(t, r, reg.RoomOf(fresh))

	team, found := r.TeamOf("B")
	require.True(t, found)
	assert.Equal(t, 1, team, "rejoin keeps the old team assignment")
	assert.Equal(t, 2, r.MemberCount())

	// new connection receives subsequent broadcasts
	r.endGame()
	assert.Equal(t, 1, freshConn.countOf(protocol.PushRoomUpdate))
}

func TestServerReadyNotifiesAndInstallsRejoin(t *testing.T) {
	reg, bus, _ := newTestRegistry(4)
	host, hostConn := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")

	b, bConn := newTestPlayer("B")
	r.AddPlayer(b)
	require.True(t, r.StartGame("A"))

	r.serverReady()

	for _, conn := range []*fakeConn{hostConn, bConn} {
		msg, ok := conn.lastOf(protocol.PushStartGame)
		require.True(t, ok)
		info, ok := msg.Data.(protocol.ServerConnInfo)
		require.True(t, ok)
		assert.Equal(t, "192.0.2.1", info.ServerIP)
		assert.Equal(t, r.Port(), info.ServerPort)
	}

	// readiness fires at most once per started game
	r.serverReady()
	assert.Equal(t, 1, hostConn.countOf(protocol.PushStartGame))

	// a reconnecting member is replayed into the room
	fresh, freshConn := newTestPlayer("B")
	bus.NotifyAndReplace("B", func() {}, fresh)

	rejoin, ok := freshConn.lastOf(protocol.PushReconnectGame)
	require.True(t, ok)
	info, ok := rejoin.Data.(protocol.ServerConnInfo)
	require.True(t, ok)
	assert.Equal(t, r.Port(), info.ServerPort)
	assert.Same(t, r, reg.RoomOf(fresh))
}

func TestEndGameClearsRejoinAndBroadcasts(t *testing.T) {
	reg, bus, _ := newTestRegistry(4)
	host, hostConn := newTestPlayer("A")
	r := mustCreateRoom(t, reg, host, "Alpha")
	require.True(t, r.StartGame("A"))
	r.serverReady()

	r.endGame()
	assert.False(t, r.Started())
	assert.Equal(t, 2, hostConn.countOf(protocol.PushRoomUpdate), "create + game over")

	// rejoin listeners are gone; reconnecting replays nothing
	fresh, freshConn := newTestPlayer("A")
	bus.NotifyAndReplace("A", func() {}, fresh)
	assert.Equal(t, 0, freshConn.countOf(protocol.PushReconnectGame))

	// idempotent on a double signal (token plus process exit)
	r.endGame()
	assert.Equal(t, 2, hostConn.countOf(protocol.PushRoomUpdate))
}

func TestPortExhaustionFailsCreate(t *testing.T) {
	reg, _, _ := newTestRegistry(1)

	a, _ := newTestPlayer("A")
	_, ok := reg.CreateRoom(a, "First")
	require.True(t, ok)

	b, _ := newTestPlayer("B")
	_, ok = reg.CreateRoom(b, "Second")
	assert.False(t, ok, "single-port pool admits exactly one room")
	assert.Nil(t, reg.RoomOf(b), "no partial room is created")
}

func TestListReportsLiveRooms(t *testing.T) {
	reg, _, _ := newTestRegistry(4)
	a, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, a, "Alpha")

	list := reg.List().List
	require.Len(t, list, 1)
	assert.Equal(t, r.ID(), list[0].RoomID)
	assert.Equal(t, "Alpha", list[0].RoomName)
	assert.Equal(t, 1, list[0].NumOfPlayers)
	assert.False(t, list[0].IsStarted)
}

// The lobby walkthrough from the drawing board: Alpha with A, B, C, a
// kick, two exits and the room winding down.
func TestScenarioAlphaRoomLifecycle(t *testing.T) {
	reg, _, alloc := newTestRegistry(4)

	a, _ := newTestPlayer("A")
	r := mustCreateRoom(t, reg, a, "Alpha")
	port := r.Port()

	team, _ := r.TeamOf("A")
	assert.Equal(t, 0, team)
	assert.Equal(t, "A", r.HostID())

	b, bConn := newTestPlayer("B")
	ok, _ := r.AddPlayer(b)
	require.True(t, ok)
	team, _ = r.TeamOf("B")
	assert.Equal(t, 1, team)

	c, _ := newTestPlayer("C")
	ok, _ = r.AddPlayer(c)
	require.True(t, ok)
	team, _ = r.TeamOf("C")
	assert.Equal(t, 0, team)

	require.True(t, r.RemovePlayer("B", true))
	assert.Equal(t, 1, bConn.countOf(protocol.PushPlayerKicked))
	assert.Equal(t, 2, r.MemberCount())

	require.True(t, r.RemovePlayer("A", false))
	assert.Equal(t, "C", r.HostID())
	assert.Equal(t, 1, r.MemberCount())

	require.True(t, r.RemovePlayer("C", false))
	assert.False(t, alloc.InUse(port))
	assert.Empty(t, reg.List().List)
}
