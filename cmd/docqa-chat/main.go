package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"docqa/internal/client"
	"docqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var serverURL, sessionID string
	flag.StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the docqa server")
	flag.StringVar(&sessionID, "session", "", "Session id to resume (default: a fresh one)")
	flag.Parse()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	api := client.New(serverURL, 2*time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Health(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", serverURL, err)
		os.Exit(1)
	}

	if _, err := tea.NewProgram(tui.New(api, sessionID)).Run(); err != nil {
		log.Fatal(err)
	}
}
