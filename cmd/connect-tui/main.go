package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"github.com/connect-button/connect/internal/app"
	"github.com/connect-button/connect/internal/client"
	"github.com/connect-button/connect/internal/config"
	"github.com/connect-button/connect/internal/connectbutton"
)

func main() {
	configPath := flag.String("config", "connect.yaml", "Path to config file (defaults apply when missing)")
	wsURL := flag.String("url", "", "WebSocket URL of the Connect API (overrides api.ws_url)")
	token := flag.String("token", "", "Auth token (overrides api.token)")
	logPath := flag.String("log", "connect-tui.log", "Log file")
	statePath := flag.String("state", ".connect-state.json", "Button state file (empty disables)")
	dark := flag.Bool("dark", false, "Render for a dark background")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.API.WSURL = *wsURL
		cfg.API.BaseURL = deriveHTTPBase(*wsURL)
	}
	if *token != "" {
		cfg.API.Token = *token
	}
	if *dark {
		cfg.Button.DarkBackground = true
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(log)

	// The terminal belongs to the UI.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	ws := client.NewWSClient(cfg.API.WSURL, cfg.API.Token, log)
	defer ws.Close()
	httpClient := client.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, log)

	m := app.New(cfg, httpClient, ws, log)
	if saved, err := loadState(*statePath); err != nil {
		log.Warn("load state", "path", *statePath, "error", err)
	} else if saved != nil {
		m.Restore(*saved)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if fm, ok := final.(app.Model); ok {
		if err := saveState(*statePath, fm.Saved()); err != nil {
			log.Warn("save state", "path", *statePath, "error", err)
		}
	}
}

func loadState(path string) (*connectbutton.SavedState, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s connectbutton.SavedState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func saveState(path string, s connectbutton.SavedState) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1:8090"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
