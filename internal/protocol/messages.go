package protocol

import "encoding/json"

// RequestType identifies the kind of request a client sends.
type RequestType string

const (
	ReqGetInfo     RequestType = "getInfo"
	ReqCreateRoom  RequestType = "createRoom"
	ReqJoinRoom    RequestType = "joinRoom"
	ReqChangeTeam  RequestType = "changeTeam"
	ReqKickPlayer  RequestType = "kickPlayer"
	ReqExitRoom    RequestType = "exitRoom"
	ReqGetAllRooms RequestType = "getAllRooms"
	ReqStartGame   RequestType = "startGame"
)

// Server-initiated push types. Direct responses instead echo the
// request's correlation key as their type.
const (
	PushConnection    = "connection"
	PushRoomUpdate    = "roomUpdate"
	PushPlayerKicked  = "playerKicked"
	PushDisconnect    = "disconnect"
	PushStartGame     = "startGame"
	PushReconnectGame = "reconnectGame"
)

// Request is the top-level wire format for client messages. Key is a
// client-chosen correlation token, unique per in-flight request.
type Request struct {
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Key     string          `json:"key"`
}

// Response is the top-level wire format for everything the server sends,
// both direct responses and unsolicited pushes.
type Response struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// --- Request payloads ---

type CreateRoomPayload struct {
	RoomName string `json:"roomName"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// ChangeTeamPayload uses a pointer so a missing field is distinguishable
// from an explicit zero, and a float so non-integer junk can be rejected
// at the gateway before the room ever sees it.
type ChangeTeamPayload struct {
	TeamIndex *float64 `json:"teamIndex"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

// --- Response data ---

// UserInfo is the resolved identity echoed on connection and getInfo.
type UserInfo struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// RoomPlayer is one member entry in a room update.
type RoomPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team int    `json:"team"`
}

// RoomInfo is the data of a roomUpdate push.
type RoomInfo struct {
	RoomName string       `json:"roomName"`
	Host     string       `json:"host"`
	Players  []RoomPlayer `json:"players"`
}

// RoomListEntry is one room in the getAllRooms listing.
type RoomListEntry struct {
	RoomID       string `json:"roomId"`
	RoomName     string `json:"roomName"`
	NumOfPlayers int    `json:"numOfPlayers"`
	IsStarted    bool   `json:"isStarted"`
}

// RoomList is the data of a getAllRooms response.
type RoomList struct {
	List []RoomListEntry `json:"list"`
}

// ServerConnInfo tells a client where its dedicated game server lives.
// Sent as the data of startGame and reconnectGame pushes.
type ServerConnInfo struct {
	ServerIP   string `json:"serverIp"`
	ServerPort int    `json:"serverPort"`
}
