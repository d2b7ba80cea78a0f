package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// MaxBackups is the number of user config backups kept.
	MaxBackups = 3

	// BackupSuffix precedes the timestamp in backup file names.
	BackupSuffix = ".bak"

	backupTimeFormat = "20060102-150405.000"
)

// BackupUserConfig copies the user config to <path>.bak.<timestamp> and
// prunes old copies. It returns "" when there is nothing to back up.
func BackupUserConfig() (string, error) {
	return backupFile(GetUserConfigPath(), time.Now())
}

func backupFile(configPath string, now time.Time) (string, error) {
	if !fileExists(configPath) {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := configPath + BackupSuffix + "." + now.Format(backupTimeFormat)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Pruning is best effort once the copy exists.
	_ = pruneBackups(configPath, MaxBackups)

	return backupPath, nil
}

// ListUserConfigBackups returns user config backups, newest first.
func ListUserConfigBackups() ([]string, error) {
	return listBackups(GetUserConfigPath())
}

// listBackups orders by the timestamp embedded in the name, which sorts
// lexically.
func listBackups(configPath string) ([]string, error) {
	dir := filepath.Dir(configPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(configPath) + BackupSuffix + "."
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(backups)
	slices.Reverse(backups)
	return backups, nil
}

func pruneBackups(configPath string, keep int) error {
	backups, err := listBackups(configPath)
	if err != nil || len(backups) <= keep {
		return err
	}
	for _, b := range backups[keep:] {
		_ = os.Remove(b)
	}
	return nil
}
