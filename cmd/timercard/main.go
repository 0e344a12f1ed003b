package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/card"
	"timercard/internal/config"
	"timercard/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to timercard.yaml")
	entity := flag.String("entity", "", "bound entity id, overrides config")
	style := flag.String("style", "", "card style: mini or normal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timercard: %v\n", err)
		os.Exit(1)
	}
	if *entity != "" {
		cfg.Card.Entity = *entity
	}
	if *style != "" {
		cfg.Card.Style = *style
	}
	if cfg.Card.Entity == "" {
		fmt.Fprintln(os.Stderr, "timercard: no entity configured, use -entity or timercard.yaml")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := transport.DialWS(ctx, cfg.Card.URL, cfg.Card.EventBuffer)
	defer bus.Close()

	model := card.New(card.Config{
		Entity:          cfg.Card.Entity,
		DefaultDuration: cfg.Card.DefaultDuration,
		UserID:          cfg.Card.UserID,
		CardStyle:       cfg.Card.Style,
		NormalHeight:    cfg.Card.Height,
		RowHeight:       cfg.Card.RowHeight,
	}, bus, nil)

	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "timercard failed: %v\n", err)
		os.Exit(1)
	}
}
