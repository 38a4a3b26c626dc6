/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "config")

// DefaultPath is where the desktop client keeps its settings:
// %APPDATA%\NetAutoAuth\config.json, or ~/NetAutoAuth/config.json elsewhere.
func DefaultPath() string {
	base := os.Getenv("APPDATA")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = home
		}
	}

	return filepath.Join(base, "NetAutoAuth", "config.json")
}

// LoadFile is a generic helper that loads a JSON file from path into
// the struct pointed to by dst.
func LoadFile(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

// LoadAndValidate loads a configuration file and validates it if possible.
func LoadAndValidate(path string, cfg interface{}) error {
	if err := LoadFile(path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

// LoadSettings reads path on top of DefaultSettings, so keys missing from the
// file keep their documented defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if err := LoadAndValidate(path, &s); err != nil {
		return DefaultSettings(), err
	}

	return s, nil
}

// SaveFile writes v as indented JSON. The file is replaced atomically.
func SaveFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write '%s': %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace '%s': %w", path, err)
	}

	return nil
}

// LoadOrCreate loads settings from path, writing defaults first when the
// file does not exist yet. A corrupt file falls back to defaults.
func LoadOrCreate(path string) (Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s := DefaultSettings()
		if err := SaveFile(path, &s); err != nil {
			return s, err
		}

		logger.WithField("path", path).Info("Wrote default configuration")

		return s, nil
	}

	s, err := LoadSettings(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Falling back to default configuration")

		return s, nil
	}

	return s, nil
}
