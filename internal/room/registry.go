package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/ports"
	"github.com/strifelab/lobbyd/internal/protocol"
	"github.com/strifelab/lobbyd/internal/reconnect"
)

// Bus is the reconnection bus specialized to gateway sessions.
type Bus = reconnect.Bus[*Player]

func NewBus() *Bus {
	return reconnect.NewBus[*Player]()
}

// ServerConfig describes how rooms launch their dedicated servers.
type ServerConfig struct {
	// Executable is the dedicated game server binary.
	Executable string
	// PublicIP is the address clients are told to connect to.
	PublicIP string
	// ForceReadyAfter, when positive, notifies players as if the server
	// were ready once the delay elapses, even without a readiness token.
	ForceReadyAfter time.Duration
}

// Registry is the set of live rooms. Its mutex serializes every room
// mutation in the process, including those driven by dedicated-server
// events, so rooms themselves need no further locking.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	ports *ports.Allocator
	bus   *Bus
	log   *zap.Logger
	cfg   ServerConfig
}

func NewRegistry(alloc *ports.Allocator, bus *Bus, log *zap.Logger, cfg ServerConfig) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		ports: alloc,
		bus:   bus,
		log:   log,
		cfg:   cfg,
	}
}

// CreateRoom leases a port and creates a room with p as host and first
// member. Returns false when the port pool is exhausted; no partial room
// is left behind.
func (reg *Registry) CreateRoom(p *Player, name string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	port, err := reg.ports.Lease()
	if err != nil {
		return nil, false
	}

	r := &Room{
		reg:  reg,
		id:   uuid.New().String(),
		name: name,
		port: port,
		host: p,
	}
	reg.rooms[r.id] = r
	r.addPlayerLocked(p)

	reg.log.Info("room created",
		zap.String("room_id", r.id),
		zap.String("name", name),
		zap.Int("port", port),
		zap.String("host", p.User.UserID))
	return r, true
}

// Get looks up a live room by id.
func (reg *Registry) Get(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	return r, ok
}

// RoomOf returns the room p currently belongs to, or nil.
func (reg *Registry) RoomOf(p *Player) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return p.currentRoom
}

// List returns the lobby-browse view of all live rooms.
func (reg *Registry) List() protocol.RoomList {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	list := make([]protocol.RoomListEntry, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		list = append(list, protocol.RoomListEntry{
			RoomID:       r.id,
			RoomName:     r.name,
			NumOfPlayers: len(r.members),
			IsStarted:    r.started,
		})
	}
	return protocol.RoomList{List: list}
}

// removeLocked destroys a room and returns its port to the pool.
// Caller holds reg.mu.
func (reg *Registry) removeLocked(r *Room) {
	delete(reg.rooms, r.id)
	reg.ports.Release(r.port)
	reg.log.Info("room destroyed",
		zap.String("room_id", r.id),
		zap.Int("port", r.port))
}
