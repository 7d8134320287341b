// Package results stores per-run translation reports on disk so past
// runs can be listed and inspected.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Manager persists run reports under a base directory, one JSON file
// per run.
type Manager struct {
	baseDir string
}

// NewManager creates a Manager rooted at baseDir. An empty baseDir uses
// the default location in the user's home directory.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, "pdf-translator-results")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the report directory
func (m *Manager) BaseDir() string {
	return m.baseDir
}

func (m *Manager) reportPath(runID string) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("run-%s.json", runID))
}

// Save writes one run's report
func (m *Manager) Save(result *types.DocumentResult) error {
	if result.RunID == "" {
		return fmt.Errorf("result has no run id")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing run report: %w", err)
	}
	path := m.reportPath(result.RunID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	logger.Info("saved run report",
		logger.String("runID", result.RunID),
		logger.String("path", path))
	return nil
}

// Load reads one run's report by id
func (m *Manager) Load(runID string) (*types.DocumentResult, error) {
	data, err := os.ReadFile(m.reportPath(runID))
	if err != nil {
		return nil, fmt.Errorf("reading run report %s: %w", runID, err)
	}
	var result types.DocumentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing run report %s: %w", runID, err)
	}
	return &result, nil
}

// List returns all stored reports, most recent first
func (m *Manager) List() ([]*types.DocumentResult, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("listing run reports: %w", err)
	}

	var results []*types.DocumentResult
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "run-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		runID := strings.TrimSuffix(strings.TrimPrefix(name, "run-"), ".json")
		r, err := m.Load(runID)
		if err != nil {
			logger.Warn("skipping unreadable run report",
				logger.String("file", name), logger.Err(err))
			continue
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// Delete removes one run's report
func (m *Manager) Delete(runID string) error {
	if err := os.Remove(m.reportPath(runID)); err != nil {
		return fmt.Errorf("deleting run report %s: %w", runID, err)
	}
	return nil
}
