package room

import (
	"bufio"
	"encoding/json"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/protocol"
)

// The dedicated server reports lifecycle events on stdout, one per line,
// after a fixed marker.
const (
	stdoutMarker     = "From Unity: "
	tokenServerReady = "SERVER_READY"
	tokenGameOver    = "GAME_OVER"
)

// serverInit is the single JSON argument handed to the dedicated server.
type serverInit struct {
	Port    int                   `json:"port"`
	Players []protocol.RoomPlayer `json:"players"`
}

// startProcessLocked spawns the dedicated server for this room and wires
// up its observation points. Spawn failure is logged and leaves the room
// started with no process; an operator has to tear the room down.
// Caller holds reg.mu.
func (r *Room) startProcessLocked() {
	blob, err := json.Marshal(serverInit{Port: r.port, Players: r.infoLocked().Players})
	if err != nil {
		r.reg.log.Error("failed to encode game server init", zap.String("room_id", r.id), zap.Error(err))
		return
	}

	cmd := exec.Command(r.reg.cfg.Executable, string(blob), "-batchmode", "-nographics")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.reg.log.Error("failed to open game server stdout", zap.String("room_id", r.id), zap.Error(err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.reg.log.Error("failed to open game server stderr", zap.String("room_id", r.id), zap.Error(err))
		return
	}

	if err := cmd.Start(); err != nil {
		r.reg.log.Error("failed to start game server",
			zap.String("room_id", r.id),
			zap.String("executable", r.reg.cfg.Executable),
			zap.Error(err))
		return
	}

	r.reg.log.Info("game server started",
		zap.String("room_id", r.id),
		zap.Int("port", r.port),
		zap.Int("pid", cmd.Process.Pid))

	go r.scanStdout(stdout)
	go r.scanStderr(stderr)
	go r.waitProcess(cmd)
}

// scanStdout watches for marker lines and routes the two known tokens.
func (r *Room) scanStdout(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		msg, ok := parseServerLine(scanner.Text())
		if !ok {
			continue
		}
		r.reg.log.Info("game server message", zap.String("room_id", r.id), zap.String("message", msg))
		switch msg {
		case tokenServerReady:
			r.serverReady()
		case tokenGameOver:
			r.endGame()
		}
	}
}

func (r *Room) scanStderr(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		r.reg.log.Warn("game server stderr", zap.String("room_id", r.id), zap.String("line", scanner.Text()))
	}
}

// waitProcess reaps the process and forces the game over even when no
// explicit GAME_OVER token was seen.
func (r *Room) waitProcess(cmd *exec.Cmd) {
	err := cmd.Wait()
	if err != nil {
		r.reg.log.Error("game server exited abnormally", zap.String("room_id", r.id), zap.Error(err))
	} else {
		r.reg.log.Info("game server exited", zap.String("room_id", r.id))
	}
	r.endGame()
}

// parseServerLine extracts the token following the stdout marker.
func parseServerLine(line string) (string, bool) {
	i := strings.Index(line, stdoutMarker)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(line[i+len(stdoutMarker):]), true
}

// serverReady notifies every member where to connect and installs their
// rejoin listeners. Fires at most once per started game, whether driven
// by the readiness token or the force-ready timer.
func (r *Room) serverReady() {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	if !r.started || r.readyNotified {
		return
	}
	r.readyNotified = true
	r.stopForceTimerLocked()

	info := r.connInfo()
	for _, m := range r.members {
		m.player.Conn.Send(protocol.Response{
			Type:    protocol.PushStartGame,
			Success: true,
			Data:    info,
		})
		r.reg.bus.RegisterRejoin(m.player.User.UserID, r.rejoin)
	}
}

// rejoin re-admits a recognized member on a fresh session: replay the
// connection info, then swap the stored connection via the rejoin path
// of AddPlayer.
func (r *Room) rejoin(p *Player) {
	p.Conn.Send(protocol.Response{
		Type:    protocol.PushReconnectGame,
		Success: true,
		Data:    r.connInfo(),
	})
	r.AddPlayer(p)
}

// endGame returns the room to the open state: rejoin listeners are
// cleared, the started flag reset and the new state broadcast.
func (r *Room) endGame() {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()

	if !r.started {
		return
	}
	r.started = false
	r.readyNotified = false
	r.stopForceTimerLocked()

	for _, m := range r.members {
		r.reg.bus.ClearRejoin(m.player.User.UserID)
	}
	r.notifyUpdateLocked()
}

func (r *Room) forceReady() {
	r.reg.log.Warn("forcing server-ready notification", zap.String("room_id", r.id))
	r.serverReady()
}

func (r *Room) stopForceTimerLocked() {
	if r.forceTimer != nil {
		r.forceTimer.Stop()
		r.forceTimer = nil
	}
}
