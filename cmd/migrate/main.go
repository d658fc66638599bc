package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/zysolutions/octodash/internal/pkg/distlock"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory of .sql files applied in name order")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping failed", "error", err)
		os.Exit(1)
	}

	files, err := migrationFiles(*dir)
	if err != nil {
		logger.Error("read migrations failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var okCount, errCount int
	err = distlock.WithLock(ctx, db, "octodash:migrate", func(ctx context.Context) error {
		for _, path := range files {
			if err := apply(ctx, db, path); err != nil {
				logger.Error("migration failed", "file", filepath.Base(path), "error", err)
				errCount++
				continue
			}
			logger.Info("migration applied", "file", filepath.Base(path))
			okCount++
		}
		return nil
	})
	if err != nil {
		logger.Error("migrations not run", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// apply runs one file inside a transaction.
func apply(ctx context.Context, db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
