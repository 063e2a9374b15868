package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/user"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strifelab/lobbyd/internal/netclient"
	"github.com/strifelab/lobbyd/internal/tui"
)

func main() {
	serverAddr := flag.String("server", "ws://localhost:8080/ws", "lobby server WebSocket address")
	token := flag.String("token", "", "auth token (defaults to OS username)")
	flag.Parse()

	tok := *token
	if tok == "" {
		if u, err := user.Current(); err == nil && u.Username != "" {
			tok = u.Username
		} else {
			tok = "operator"
		}
	}

	client, err := netclient.New(*serverAddr + "?token=" + url.QueryEscape(tok))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to server at %s: %v\n", *serverAddr, err)
		fmt.Fprintf(os.Stderr, "Make sure the server is running (go run ./cmd/lobbyd)\n")
		os.Exit(1)
	}
	defer client.Close()

	model := tui.NewModel(client)

	p := tea.NewProgram(model, tea.WithAltScreen())

	client.SetProgram(p)
	client.Start()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
