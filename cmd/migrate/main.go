package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/saku-tracker/internal/blob"
	"github.com/dvloznov/saku-tracker/internal/config"
	"github.com/dvloznov/saku-tracker/internal/logger"
	"github.com/dvloznov/saku-tracker/internal/store"
)

// migrate upgrades the schema of the durable database image in place.
// The image is also upgraded on first use by any other binary; running this
// ahead of a deploy keeps the upgrade out of the request path and leaves a
// backup of the old image behind.
func main() {
	cfg := config.Load()
	backupDir := flag.String("backup-dir", ".", "Directory for a copy of the image before upgrading; empty disables the backup")
	flag.Parse()

	log := logger.NewWithConfig(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	bs, err := blob.Open(ctx, cfg.Blob(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}
	defer bs.Close()

	persister := store.NewBlobPersister(bs, cfg.StoreKey)

	if *backupDir != "" {
		image, err := persister.Load(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load image")
		}
		if len(image) > 0 {
			path := backupPath(*backupDir, cfg.StoreKey, time.Now())
			if err := os.WriteFile(path, image, 0o600); err != nil {
				log.Fatal().Err(err).Str("path", path).Msg("Failed to write backup")
			}
			log.Info().Str("path", path).Int("bytes", len(image)).Msg("Backup written")
		}
	}

	engine := store.NewEngine(persister, log)
	if err := engine.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	defer engine.Close()

	if engine.Dirty() {
		if err := engine.Flush(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to write upgraded image")
		}
	}

	v, err := engine.SchemaVersion(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read schema version")
	}
	fmt.Printf("Schema is at version %d\n", v)
}

// backupPath names a backup after the store key and a UTC timestamp.
func backupPath(dir, key string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(key), filepath.Ext(key))
	if base == "" || base == "." || base == "/" {
		base = "saku"
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.db.bak", base, now.UTC().Format("20060102T150405Z")))
}
