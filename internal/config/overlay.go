// config/overlay.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// OverlayLocal merges the non-zero values of the file at localPath over cfg.
// A missing file is not an error. Zero values (false, 0, "") in the local
// file cannot override a set value.
func OverlayLocal(cfg *Config, localPath string) error {
	b, err := os.ReadFile(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var local Config
	if err := yaml.Unmarshal(b, &local); err != nil {
		return fmt.Errorf("parse %s: %w", localPath, err)
	}
	if err := mergo.Merge(cfg, local, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge %s: %w", localPath, err)
	}
	return nil
}
