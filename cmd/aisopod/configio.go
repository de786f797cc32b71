package main

import (
	"fmt"

	"github.com/haasonsaas/aisopod/internal/config"
)

// loadConfigForClient loads config for commands that only need it to
// derive a gateway address or a default, falling back to an unvalidated
// default rather than failing a read-only command outright.
func loadConfigForClient(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default(), nil
	}
	return cfg, nil
}

func mustConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, configError(fmt.Errorf("load config %s: %w", path, err))
	}
	return cfg, nil
}
