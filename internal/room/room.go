package room

import (
	"time"

	"github.com/strifelab/lobbyd/internal/protocol"
)

// MaxMembers caps room membership.
const MaxMembers = 10

// Conn is the outbound side of a client session. Implemented by the
// gateway; sends are fire-and-forget.
type Conn interface {
	Send(resp protocol.Response)
	Close()
}

// Player is one live session: identity, connection handle and current
// room membership. A reconnecting identity gets a fresh Player whose
// connection replaces the stale one on rejoin.
type Player struct {
	User protocol.UserInfo
	Conn Conn

	// currentRoom is guarded by the owning registry's mutex.
	currentRoom *Room
}

type member struct {
	team   int // 0 or 1
	player *Player
}

// Room is the state machine for one match lobby. All exported methods
// serialize through the registry mutex, so every mutation and its
// broadcast are observed in a single global order.
type Room struct {
	reg  *Registry
	id   string
	name string
	port int

	host          *Player
	started       bool
	readyNotified bool
	members       []*member // insertion order decides host promotion
	forceTimer    *time.Timer
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) Port() int    { return r.port }

func (r *Room) Started() bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.started
}

func (r *Room) HostID() string {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.host.User.UserID
}

// IsHost reports whether userID owns the room.
func (r *Room) IsHost(userID string) bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.host.User.UserID == userID
}

func (r *Room) MemberCount() int {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return len(r.members)
}

// TeamOf reports the team a member is on.
func (r *Room) TeamOf(userID string) (int, bool) {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	if m := r.findMember(userID); m != nil {
		return m.team, true
	}
	return 0, false
}

// Info returns the room snapshot broadcast to members.
func (r *Room) Info() protocol.RoomInfo {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.infoLocked()
}

// AddPlayer admits p to the room. While the game is running only
// recognized members may enter, as a rejoin that swaps in the new
// connection and keeps the old team. The returned message is
// client-facing text.
func (r *Room) AddPlayer(p *Player) (bool, string) {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.addPlayerLocked(p)
}

func (r *Room) addPlayerLocked(p *Player) (bool, string) {
	existing := r.findMember(p.User.UserID)

	if r.started {
		if existing == nil {
			return false, "You cannot join the room as the game has already started."
		}
		existing.player.currentRoom = nil
		existing.player = p
		p.currentRoom = r
		return true, "Rejoin room success"
	}

	if existing != nil {
		return false, "Player already joined!"
	}
	if len(r.members) >= MaxMembers {
		return false, "Room is full!"
	}

	r.members = append(r.members, &member{team: r.teamWithFewerPlayers(), player: p})
	r.notifyUpdateLocked()
	p.currentRoom = r

	return true, "Joined room successfully!"
}

// UpdateTeam overwrites a member's team and broadcasts the change.
// The gateway validates the index; the room stores any non-negative value.
func (r *Room) UpdateTeam(userID string, team int) bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	m := r.findMember(userID)
	if m == nil {
		return false
	}
	m.team = team
	r.notifyUpdateLocked()
	return true
}

// RemovePlayer takes a member out of the room. Refused while the game is
// running: a dropped member stays parked in the roster so the rejoin path
// can re-attach them. An empty room is destroyed and its port released;
// otherwise a departing host is replaced by the earliest-joined member.
func (r *Room) RemovePlayer(userID string, kicked bool) bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	if r.started {
		return false
	}

	idx := -1
	for i, m := range r.members {
		if m.player.User.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	removed := r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	removed.player.currentRoom = nil

	if kicked {
		removed.player.Conn.Send(protocol.Response{
			Type:    protocol.PushPlayerKicked,
			Success: true,
			Message: "You have been kicked by the host!",
		})
	}

	if len(r.members) == 0 {
		r.reg.removeLocked(r)
		return true
	}

	if r.host.User.UserID == userID {
		r.host = r.members[0].player
	}
	r.notifyUpdateLocked()
	return true
}

// CanStart reports whether userID may start the game: host only, and
// only while the room is open.
func (r *Room) CanStart(userID string) bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.canStartLocked(userID)
}

func (r *Room) canStartLocked(userID string) bool {
	return r.host.User.UserID == userID && !r.started
}

// StartGame transitions the room to started and spawns its dedicated
// server. The check and the transition are atomic, so a duplicate start
// request cannot slip through between them.
func (r *Room) StartGame(userID string) bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	if !r.canStartLocked(userID) {
		return false
	}
	r.started = true
	r.startProcessLocked()

	if d := r.reg.cfg.ForceReadyAfter; d > 0 {
		r.forceTimer = time.AfterFunc(d, r.forceReady)
	}
	return true
}

func (r *Room) findMember(userID string) *member {
	for _, m := range r.members {
		if m.player.User.UserID == userID {
			return m
		}
	}
	return nil
}

// teamWithFewerPlayers picks the smaller team, team 0 on a tie.
func (r *Room) teamWithFewerPlayers() int {
	var zero, one int
	for _, m := range r.members {
		if m.team == 1 {
			one++
		} else {
			zero++
		}
	}
	if one < zero {
		return 1
	}
	return 0
}

func (r *Room) infoLocked() protocol.RoomInfo {
	players := make([]protocol.RoomPlayer, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, protocol.RoomPlayer{
			ID:   m.player.User.UserID,
			Name: m.player.User.Name,
			Team: m.team,
		})
	}
	return protocol.RoomInfo{
		RoomName: r.name,
		Host:     r.host.User.UserID,
		Players:  players,
	}
}

func (r *Room) notifyUpdateLocked() {
	info := r.infoLocked()
	for _, m := range r.members {
		m.player.Conn.Send(protocol.Response{
			Type:    protocol.PushRoomUpdate,
			Success: true,
			Message: "Success!",
			Data:    info,
		})
	}
}

func (r *Room) connInfo() protocol.ServerConnInfo {
	// port and public IP never change after creation
	return protocol.ServerConnInfo{
		ServerIP:   r.reg.cfg.PublicIP,
		ServerPort: r.port,
	}
}
