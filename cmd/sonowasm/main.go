//go:build js && wasm

// Command sonowasm exposes a sono session to the host page.
package main

import (
	"os"

	"github.com/ingyamilmolinar/sono/internal/bridge"
	"github.com/ingyamilmolinar/sono/internal/config"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

func main() {
	cfg := config.Default()
	logger := sono_log.New(os.Stdout, sono_log.LevelFromString(cfg.LogLevel))
	b := bridge.New(cfg, logger)
	b.Register()
	logger.Infof("sono bridge registered")
	select {}
}
