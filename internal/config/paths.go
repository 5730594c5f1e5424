package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the default data directory for ggufdeck.
// Windows: %LOCALAPPDATA%\ggufdeck
// Linux/Mac: ~/.local/share/ggufdeck
func DataDir() string {
	if dir := os.Getenv("GGUFDECK_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "ggufdeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ggufdeck")
}

// ModelsDir returns the directory where models are stored.
// Relative to the working directory unless GGUFDECK_MODELS_DIR is set.
func ModelsDir() string {
	if dir := os.Getenv("GGUFDECK_MODELS_DIR"); dir != "" {
		return dir
	}
	return "models"
}

// OutputsDir returns the directory where chat session files are written.
func OutputsDir() string {
	if dir := os.Getenv("GGUFDECK_OUTPUTS_DIR"); dir != "" {
		return dir
	}
	return "outputs"
}

// BinDir returns the directory where llama-server binaries are stored.
func BinDir() string {
	if dir := os.Getenv("GGUFDECK_BIN_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(DataDir(), "bin")
}

// RecallDir returns the directory where the chat recall index is persisted.
func RecallDir() string {
	return filepath.Join(DataDir(), "recall")
}

// DefaultConfigPath returns the location of the optional YAML config file.
func DefaultConfigPath() string {
	if p := os.Getenv("GGUFDECK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "config.yaml")
}

// EnsureDirs creates the required directories if they don't exist.
func EnsureDirs(cfg *Config) error {
	dirs := []string{cfg.ModelsDir, cfg.OutputsDir}
	if cfg.Recall.Enabled() {
		dirs = append(dirs, cfg.Recall.Dir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
