// Package gateway terminates client WebSocket connections, authenticates
// them and dispatches their requests to the room registry.
package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/auth"
	"github.com/strifelab/lobbyd/internal/protocol"
	"github.com/strifelab/lobbyd/internal/room"
)

type Gateway struct {
	log *zap.Logger
	reg *room.Registry
	bus *room.Bus

	upgrader websocket.Upgrader
}

func New(log *zap.Logger, reg *room.Registry, bus *room.Bus) *Gateway {
	return &Gateway{
		log: log,
		reg: reg,
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP surface: the WebSocket endpoint and a health
// check.
func (g *Gateway) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", g.handleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

// handleWS authenticates the token from the query string before the
// upgrade; a bad token gets an HTTP 403 and never reaches the protocol.
func (g *Gateway) handleWS(c *gin.Context) {
	info, err := auth.Validate(c.Query("token"))
	if err != nil {
		c.String(http.StatusForbidden, "Forbidden")
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.log.Error("upgrade error", zap.Error(err))
		return
	}

	sess := newSession(info.UserID, conn, g.log)
	go sess.writePump()

	sess.Send(protocol.Response{
		Type:    protocol.PushConnection,
		Success: true,
		Message: "Success!",
		Data:    info,
	})

	p := &room.Player{User: info, Conn: sess}

	// Evict any prior session for this identity, then replay a pending
	// rejoin if a started room still recognizes the player.
	reg := g.bus.NotifyAndReplace(info.UserID, func() {
		sess.Send(protocol.Response{
			Type:    protocol.PushDisconnect,
			Success: false,
			Message: "Same user connected from another session!",
		})
		sess.Close()
	}, p)

	g.log.Info("player connected", zap.String("user_id", info.UserID))
	g.readPump(sess, p)

	// Graceful departure: deregister our own eviction callback and leave
	// the current room. A started room refuses the removal, which parks
	// the membership for rejoin.
	g.bus.RemoveDisconnect(info.UserID, reg)
	if r := g.reg.RoomOf(p); r != nil {
		r.RemovePlayer(info.UserID, false)
	}
	sess.Close()
	g.log.Info("player disconnected", zap.String("user_id", info.UserID))
}

func (g *Gateway) readPump(sess *session, p *room.Player) {
	defer sess.conn.Close()

	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("read error", zap.String("user_id", sess.userID), zap.Error(err))
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(message, &req); err != nil {
			g.log.Warn("undecodable frame", zap.String("user_id", sess.userID), zap.Error(err))
			continue
		}

		g.dispatch(sess, p, req)
	}
}

// dispatch routes one decoded request. A failure for one request never
// tears down the session.
func (g *Gateway) dispatch(sess *session, p *room.Player, req protocol.Request) {
	switch req.Type {
	case protocol.ReqGetInfo:
		respond(sess, req.Key, true, "Success!", p.User)

	case protocol.ReqCreateRoom:
		g.handleCreateRoom(sess, p, req)

	case protocol.ReqJoinRoom:
		g.handleJoinRoom(sess, p, req)

	case protocol.ReqChangeTeam:
		g.handleChangeTeam(sess, p, req)

	case protocol.ReqKickPlayer:
		g.handleKickPlayer(sess, p, req)

	case protocol.ReqExitRoom:
		g.handleExitRoom(sess, p, req)

	case protocol.ReqGetAllRooms:
		respond(sess, req.Key, true, "Success!", g.reg.List())

	case protocol.ReqStartGame:
		g.handleStartGame(sess, p, req)

	default:
		respond(sess, req.Key, false, fmt.Sprintf("Unknown action: %s", req.Type), nil)
	}
}

func (g *Gateway) handleCreateRoom(sess *session, p *room.Player, req protocol.Request) {
	var payload protocol.CreateRoomPayload
	if json.Unmarshal(req.Payload, &payload) != nil || payload.RoomName == "" {
		invalidRequest(sess, req)
		return
	}

	// Creating while already seated would orphan the old membership.
	if g.reg.RoomOf(p) != nil {
		respond(sess, req.Key, false, "Player already joined!", nil)
		return
	}

	if _, ok := g.reg.CreateRoom(p, payload.RoomName); !ok {
		respond(sess, req.Key, false, "No room available at current time, try again later!", nil)
		return
	}
	respond(sess, req.Key, true, "Success!", nil)
}

func (g *Gateway) handleJoinRoom(sess *session, p *room.Player, req protocol.Request) {
	var payload protocol.JoinRoomPayload
	if json.Unmarshal(req.Payload, &payload) != nil || payload.RoomID == "" {
		invalidRequest(sess, req)
		return
	}

	r, ok := g.reg.Get(payload.RoomID)
	if !ok {
		respond(sess, req.Key, false, fmt.Sprintf("Room with ID %s not found!", payload.RoomID), nil)
		return
	}

	joined, msg := r.AddPlayer(p)
	respond(sess, req.Key, joined, msg, nil)
}

func (g *Gateway) handleChangeTeam(sess *session, p *room.Player, req protocol.Request) {
	r := g.reg.RoomOf(p)
	if r == nil {
		invalidRequest(sess, req)
		return
	}

	var payload protocol.ChangeTeamPayload
	if json.Unmarshal(req.Payload, &payload) != nil || !validTeamIndex(payload.TeamIndex) {
		invalidRequest(sess, req)
		return
	}

	if r.UpdateTeam(p.User.UserID, int(*payload.TeamIndex)) {
		respond(sess, req.Key, true, "Success!", nil)
	} else {
		respond(sess, req.Key, false, "Can't find yourself in the room!", nil)
	}
}

func (g *Gateway) handleKickPlayer(sess *session, p *room.Player, req protocol.Request) {
	var payload protocol.KickPlayerPayload
	r := g.reg.RoomOf(p)
	if json.Unmarshal(req.Payload, &payload) != nil || payload.PlayerID == "" || r == nil {
		invalidRequest(sess, req)
		return
	}

	if !r.IsHost(p.User.UserID) || p.User.UserID == payload.PlayerID {
		respond(sess, req.Key, false, "You can't kick yourself or don't have permission!", nil)
		return
	}

	if r.RemovePlayer(payload.PlayerID, true) {
		respond(sess, req.Key, true, "Success!", nil)
	} else {
		respond(sess, req.Key, false, fmt.Sprintf("Player %s is no longer in the room!", payload.PlayerID), nil)
	}
}

func (g *Gateway) handleExitRoom(sess *session, p *room.Player, req protocol.Request) {
	r := g.reg.RoomOf(p)
	if r == nil {
		invalidRequest(sess, req)
		return
	}

	if r.RemovePlayer(p.User.UserID, false) {
		respond(sess, req.Key, true, "Success!", nil)
	} else {
		respond(sess, req.Key, false, "You are no longer in this room!", nil)
	}
}

func (g *Gateway) handleStartGame(sess *session, p *room.Player, req protocol.Request) {
	r := g.reg.RoomOf(p)
	if r == nil {
		invalidRequest(sess, req)
		return
	}

	if r.StartGame(p.User.UserID) {
		respond(sess, req.Key, true, "Success!", nil)
	} else {
		respond(sess, req.Key, false, "You don't have permission or the game already started!", nil)
	}
}

// validTeamIndex enforces the format contract: the room itself accepts
// any non-negative integer, so junk has to stop here.
func validTeamIndex(ti *float64) bool {
	if ti == nil {
		return false
	}
	v := *ti
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v == math.Trunc(v)
}

func respond(sess *session, typ string, success bool, message string, data any) {
	sess.Send(protocol.Response{
		Type:    typ,
		Success: success,
		Message: message,
		Data:    data,
	})
}

// invalidRequest answers a malformed payload under the request's
// correlation key, like every other direct response.
func invalidRequest(sess *session, req protocol.Request) {
	respond(sess, req.Key, false, "Request is invalid!", nil)
}
