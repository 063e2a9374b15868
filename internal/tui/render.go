package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	hostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	startedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	teamStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Faint(true)

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			MarginTop(1)
)

func (m Model) View() string {
	var body string
	switch m.screen {
	case ScreenConnecting:
		body = "Connecting to lobby server..."
	case ScreenLobby:
		body = m.viewLobby()
	case ScreenRoom:
		body = m.viewRoom()
	case ScreenInGame:
		body = m.viewInGame()
	}

	var sb strings.Builder
	sb.WriteString(body)
	if m.status != "" {
		sb.WriteString("\n" + statusStyle.Render(m.status))
	}
	if m.disconnected {
		sb.WriteString("\n" + startedStyle.Render("Disconnected from server."))
	}
	return sb.String()
}

func (m Model) viewLobby() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Rooms — signed in as %s", m.user.Name)))
	sb.WriteString("\n\n")

	if len(m.rooms) == 0 {
		sb.WriteString("No rooms yet.\n")
	}
	for i, r := range m.rooms {
		line := fmt.Sprintf("%-24s %2d/10", r.RoomName, r.NumOfPlayers)
		if r.IsStarted {
			line += "  " + startedStyle.Render("in game")
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(helpStyle.Render("c: create  enter: join  r: refresh  q: quit"))
	return sb.String()
}

func (m Model) viewRoom() string {
	info := m.roomInfo
	if info == nil {
		return "Joining room..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(info.RoomName))
	sb.WriteString("\n\n")

	var teams [2][]string
	for i, p := range info.Players {
		slot := 0
		if p.Team != 0 {
			slot = 1
		}
		entry := p.Name
		if p.ID == info.Host {
			entry += hostStyle.Render(" (host)")
		}
		if i == m.roomCursor {
			entry = selectedStyle.Render("> ") + entry
		} else {
			entry = "  " + entry
		}
		teams[slot] = append(teams[slot], entry)
	}

	left := teamStyle.Render("Team 0\n\n" + strings.Join(teams[0], "\n"))
	right := teamStyle.Render("Team 1\n\n" + strings.Join(teams[1], "\n"))
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	sb.WriteString("\n")

	help := "t: switch team  esc: leave  q: quit"
	if m.isHost() {
		help = "t: switch team  k: kick  s: start game  esc: leave  q: quit"
	}
	sb.WriteString(helpStyle.Render(help))
	return sb.String()
}

func (m Model) viewInGame() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Match running"))
	sb.WriteString("\n\n")
	if m.serverInfo != nil {
		sb.WriteString(fmt.Sprintf("Game server at %s:%d\n", m.serverInfo.ServerIP, m.serverInfo.ServerPort))
	}
	sb.WriteString("Waiting for the match to finish...\n")
	sb.WriteString(helpStyle.Render("q: quit"))
	return sb.String()
}
