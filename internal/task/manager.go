package task

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads and parses Task definitions.
type Manager struct {
	logger *zap.Logger
}

// File represents the structure of tasks YAML file
type File struct {
	Tasks []Row `yaml:"tasks"`
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("task_manager")}
}

// Load reads tasks from a YAML file. Invalid rows are skipped with a warning.
func (m *Manager) Load(path string) ([]Task, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for tasks file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return m.Parse(data)
}

// Parse разбирает содержимое файла задач.
func (m *Manager) Parse(data []byte) ([]Task, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in configuration")
	}

	tasks := make([]Task, 0, len(file.Tasks))
	for i, row := range file.Tasks {
		intent, err := row.Intent()
		if err != nil {
			m.logger.Warn("Skipping invalid task",
				zap.Int("row", i),
				zap.String("task_name", row.TaskName),
				zap.Error(err))
			continue
		}
		tasks = append(tasks, Task{ID: i, TaskName: row.TaskName, Intent: intent})
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no valid tasks loaded")
	}

	m.logger.Info("Loaded tasks", zap.Int("count", len(tasks)), zap.Int("skipped", len(file.Tasks)-len(tasks)))
	return tasks, nil
}
