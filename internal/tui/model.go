package tui

import (
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strifelab/lobbyd/internal/netclient"
	"github.com/strifelab/lobbyd/internal/protocol"
)

// --- Screens ---

type Screen int

const (
	ScreenConnecting Screen = iota
	ScreenLobby
	ScreenRoom
	ScreenInGame
)

// Model drives the operator client: browse rooms, sit in one, watch the
// match start.
type Model struct {
	screen Screen
	client *netclient.Client

	user protocol.UserInfo

	// Lobby state
	rooms  []protocol.RoomListEntry
	cursor int

	// Room state
	roomInfo   *protocol.RoomInfo
	roomCursor int

	// In-game state
	serverInfo *protocol.ServerConnInfo

	status       string
	disconnected bool
	width        int
	height       int
}

func NewModel(client *netclient.Client) Model {
	return Model{screen: ScreenConnecting, client: client}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// request sends a typed request using the type itself as correlation key;
// each request kind is only ever in flight once from this client.
func (m Model) request(typ protocol.RequestType, payload any) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	m.client.Send(protocol.Request{Type: typ, Payload: raw, Key: string(typ)})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case netclient.ConnectedMsg:
		m.user = msg.User
		m.screen = ScreenLobby
		m.request(protocol.ReqGetAllRooms, nil)
		return m, nil

	case netclient.DisconnectedMsg:
		m.disconnected = true
		return m, tea.Quit

	case netclient.ServerMsg:
		return m.handleServerMsg(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleServerMsg(msg netclient.ServerMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case protocol.PushRoomUpdate:
		var info protocol.RoomInfo
		if json.Unmarshal(msg.Data, &info) == nil {
			m.roomInfo = &info
			if m.roomCursor >= len(info.Players) {
				m.roomCursor = 0
			}
			// GAME_OVER broadcasts a room update; drop back to the room view
			if m.screen != ScreenRoom {
				m.screen = ScreenRoom
			}
		}
		return m, nil

	case protocol.PushStartGame, protocol.PushReconnectGame:
		var info protocol.ServerConnInfo
		if json.Unmarshal(msg.Data, &info) == nil {
			m.serverInfo = &info
			m.screen = ScreenInGame
		}
		return m, nil

	case protocol.PushPlayerKicked:
		m.roomInfo = nil
		m.screen = ScreenLobby
		m.status = msg.Message
		m.request(protocol.ReqGetAllRooms, nil)
		return m, nil

	case protocol.PushDisconnect:
		m.status = msg.Message
		return m, nil

	case string(protocol.ReqGetAllRooms):
		var list protocol.RoomList
		if json.Unmarshal(msg.Data, &list) == nil {
			m.rooms = list.List
			if m.cursor >= len(m.rooms) {
				m.cursor = 0
			}
		}
		return m, nil

	case string(protocol.ReqExitRoom):
		if msg.Success {
			m.roomInfo = nil
			m.screen = ScreenLobby
			m.request(protocol.ReqGetAllRooms, nil)
		}
		m.status = msg.Message
		return m, nil

	default:
		// createRoom/joinRoom/changeTeam/kickPlayer/startGame responses
		// carry no data we act on; surface the message.
		m.status = msg.Message
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key := msg.String(); key == "ctrl+c" || key == "q" {
		return m, tea.Quit
	}

	switch m.screen {
	case ScreenLobby:
		return m.handleLobbyKey(msg)
	case ScreenRoom:
		return m.handleRoomKey(msg)
	}
	return m, nil
}

func (m Model) handleLobbyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rooms)-1 {
			m.cursor++
		}
	case "r":
		m.request(protocol.ReqGetAllRooms, nil)
	case "c":
		m.request(protocol.ReqCreateRoom, protocol.CreateRoomPayload{
			RoomName: fmt.Sprintf("%s's room", m.user.Name),
		})
	case "enter":
		if m.cursor < len(m.rooms) {
			m.request(protocol.ReqJoinRoom, protocol.JoinRoomPayload{
				RoomID: m.rooms[m.cursor].RoomID,
			})
		}
	}
	return m, nil
}

func (m Model) handleRoomKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	info := m.roomInfo
	switch msg.String() {
	case "up":
		if m.roomCursor > 0 {
			m.roomCursor--
		}
	case "down":
		if info != nil && m.roomCursor < len(info.Players)-1 {
			m.roomCursor++
		}
	case "t":
		if info != nil {
			team := float64(1 - m.myTeam())
			m.request(protocol.ReqChangeTeam, protocol.ChangeTeamPayload{TeamIndex: &team})
		}
	case "k":
		if info != nil && m.roomCursor < len(info.Players) {
			m.request(protocol.ReqKickPlayer, protocol.KickPlayerPayload{
				PlayerID: info.Players[m.roomCursor].ID,
			})
		}
	case "s":
		m.request(protocol.ReqStartGame, nil)
	case "esc":
		m.request(protocol.ReqExitRoom, nil)
	}
	return m, nil
}

func (m Model) myTeam() int {
	if m.roomInfo == nil {
		return 0
	}
	for _, p := range m.roomInfo.Players {
		if p.ID == m.user.UserID {
			return p.Team
		}
	}
	return 0
}

func (m Model) isHost() bool {
	return m.roomInfo != nil && m.roomInfo.Host == m.user.UserID
}
