package main

import (
	"context"
	"log"
	"os"
	"time"

	"sruwatch/config"
)

const watchEvery = time.Second

// watchConfig relê o arquivo quando o mtime muda e entrega a config nova a
// apply. Arquivo inválido ou apply com erro só gera log; a config anterior
// continua. Volta quando ctx acaba.
func watchConfig(ctx context.Context, path string, every time.Duration, apply func(config.Config) error, logger *log.Logger) error {
	last := modTime(path)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		mt := modTime(path)
		if mt.IsZero() || mt.Equal(last) {
			continue
		}
		last = mt
		cfg, err := config.Load(path)
		if err != nil {
			logger.Printf("config ignorada: %v", err)
			continue
		}
		if err := apply(cfg); err != nil {
			logger.Printf("config não aplicada: %v", err)
			continue
		}
		logger.Printf("config recarregada de %s", path)
	}
}

func modTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
