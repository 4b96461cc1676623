// Command cleanup removes stored uploads older than a cutoff. Intended for
// cron on single-node deployments where uploads live on the local disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"formu/internal/storage"
)

func main() {
	var (
		dirFlag    string
		maxAgeFlag time.Duration
		dryRunFlag bool
	)

	flag.StringVar(&dirFlag, "dir", "", "upload directory (defaults to UPLOAD_DIR)")
	flag.DurationVar(&maxAgeFlag, "max-age", 7*24*time.Hour, "remove files older than this")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "report what would be removed without deleting")
	flag.Parse()

	_ = godotenv.Load()

	dir := dirFlag
	if dir == "" {
		dir = os.Getenv("UPLOAD_DIR")
	}
	if dir == "" {
		exitWithError(errors.New("-dir or UPLOAD_DIR is required"))
	}
	if maxAgeFlag <= 0 {
		exitWithError(errors.New("-max-age must be positive"))
	}

	files, err := storage.NewFileStore(dir)
	if err != nil {
		exitWithError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stats, err := files.Stats(ctx)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("store %s: %d files, %d bytes\n", dir, stats.Files, stats.TotalBytes)

	if dryRunFlag {
		fmt.Println("dry run, nothing removed")
		return
	}

	removed, err := files.CleanupOlderThan(ctx, maxAgeFlag)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("removed %d files older than %s\n", removed, maxAgeFlag)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
