package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tuannm99/novadb/internal/bufferpool"
	"github.com/tuannm99/novadb/internal/catalog"
	"github.com/tuannm99/novadb/internal/config"
	"github.com/tuannm99/novadb/internal/heap"
)

const prompt = "novaheap> "

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novaheap_history"
	}
	return filepath.Join(home, ".novaheap_history")
}

// openSession registers every configured table in a fresh catalog backed by
// one buffer pool.
func openSession(cfg *config.Config) (*session, error) {
	cat := catalog.New()
	pool := bufferpool.New(cat, cfg.BufferPool.Capacity)
	for _, tc := range cfg.Tables {
		desc, err := tc.Desc()
		if err != nil {
			return nil, err
		}
		f, err := heap.NewFile(cfg.TablePath(tc), desc, pool, heap.WithPageSize(cfg.Storage.PageSize))
		if err != nil {
			return nil, fmt.Errorf("open table %q: %w", tc.Name, err)
		}
		cat.AddTable(f, tc.Name)
	}
	return &session{cfg: cfg, cat: cat, pool: pool, out: os.Stdout}, nil
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to the YAML config (defaults only when empty)")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		oneShot  = flag.String("c", "", "run one command and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	s, err := openSession(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := s.pool.FlushAll(); err != nil {
			slog.Error("novaheap: flush on exit failed", "err", err)
		}
	}()

	ctx := context.Background()

	if strings.TrimSpace(*oneShot) != "" {
		if _, err := s.exec(ctx, *oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     *histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("%d table(s) under %s\n", len(cfg.Tables), cfg.Storage.DataDir)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		quit, err := s.exec(ctx, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if quit {
			return
		}
	}
}
