package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/schedule"
)

const logFileName = "console.log"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The UI owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close() // Ignore error in defer
	}()
	log := logger.SetupWriter(cfg, logFile)

	ctx := context.Background()
	store, _, err := storage.Open(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open save storage: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	library := storage.NewLibrary(cfg.DataDir, log)
	catalogs, err := library.Catalogs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalogs: %v\n", err)
		os.Exit(1)
	}

	start := func(ctx context.Context, name string) (*session.Session, error) {
		s, err := library.Script(ctx, name)
		if err != nil {
			return nil, err
		}
		return session.New(session.Deps{
			Script:       s,
			Title:        name,
			Enemies:      catalogs.Enemies,
			Characters:   catalogs.Characters,
			Skills:       catalogs.Skills,
			Saves:        save.NewManager(store, save.WithSlotCount(cfg.SaveSlots), save.WithLogger(log)),
			Scheduler:    schedule.Real{},
			Logger:       log,
			AutoSave:     cfg.AutoSave,
			EnemyDelay:   cfg.EnemyThinkDelay,
			AutoInterval: cfg.AutoPlayInterval,
		}, uuid.New())
	}

	ui := NewConsoleUI(library, start)
	p := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if m, ok := final.(ConsoleUI); ok && m.session != nil {
		m.session.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
