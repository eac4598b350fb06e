// Command boardctl inspects a post store offline.
//
//	boardctl [-env .env] stats
//	boardctl [-env .env] dump [-page-size 100]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"threadboard/internal/app"
	"threadboard/internal/app/post"
	"threadboard/internal/config"
	"threadboard/internal/utils"

	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading config")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer logger.Sync()

	utils.LoadEnv(logger, *envFile)
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}

	ctx := context.Background()
	st, closeStore, err := app.OpenStore(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open post store", zap.Error(err))
	}
	defer closeStore()

	repo, err := post.NewRepository(ctx, st, nil, logger)
	if err != nil {
		logger.Fatal("Failed to load posts", zap.Error(err))
	}

	switch cmd := flag.Arg(0); cmd {
	case "stats":
		err = writeJSON(os.Stdout, repo.Stats())
	case "dump":
		fs := flag.NewFlagSet("dump", flag.ExitOnError)
		pageSize := fs.Int("page-size", 100, "threads read per page")
		fs.Parse(flag.Args()[1:])
		err = dump(ctx, os.Stdout, repo, *pageSize)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-env file] <stats|dump> [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

// dump writes every thread with its replies as one JSON object per line, in
// listing order.
func dump(ctx context.Context, w io.Writer, repo post.Repository, pageSize int) error {
	for page := 0; ; page++ {
		p, err := repo.ListTopLevel(ctx, page, pageSize)
		if err != nil {
			return err
		}
		for _, op := range p.Posts {
			thread, err := repo.GetThread(ctx, op.ID)
			if err != nil {
				return fmt.Errorf("failed to read thread %s: %w", op.ID, err)
			}
			if err := writeJSON(w, thread); err != nil {
				return err
			}
		}
		if !p.HasNext {
			return nil
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
