// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	ErrActivityExists   = errors.New("activity already exists")
	ErrActivityNotFound = errors.New("activity not found")
	ErrUnknownField     = errors.New("unknown field")
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrNew returns an empty registry when path does not exist yet.
func LoadOrNew(path string) (*ActivityRegistry, error) {
	reg, err := LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ActivityRegistry{Version: "1.0.0", Activities: []Activity{}}, nil
	}
	return reg, err
}

// Save writes the registry as indented JSON, creating the directory if needed.
func (r *ActivityRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find looks an activity up by its task type.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Get looks an activity up by its id.
func (r *ActivityRegistry) Get(id string) (*Activity, error) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
}

func (r *ActivityRegistry) Add(activity Activity) error {
	for _, existing := range r.Activities {
		if existing.ID == activity.ID {
			return fmt.Errorf("%w: %s", ErrActivityExists, activity.ID)
		}
	}
	r.Activities = append(r.Activities, activity)
	return nil
}

// Update sets a single scalar field of the activity with the given id.
func (r *ActivityRegistry) Update(id, field, value string) error {
	activity, err := r.Get(id)
	if err != nil {
		return err
	}

	switch field {
	case "status":
		if !validStatuses[value] {
			return fmt.Errorf("invalid status %q", value)
		}
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "category":
		activity.Category = value
	case "taskType":
		activity.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// Validate reports every problem found, not just the first.
func (r *ActivityRegistry) Validate() error {
	var errs []error
	if len(r.Activities) == 0 {
		errs = append(errs, errors.New("registry contains no activities"))
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for i, activity := range r.Activities {
		if activity.ID == "" {
			errs = append(errs, fmt.Errorf("activity %d missing required field: id", i))
			continue
		}
		if ids[activity.ID] {
			errs = append(errs, fmt.Errorf("duplicate activity ID: %s", activity.ID))
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			errs = append(errs, fmt.Errorf("activity %s missing required field: displayName", activity.ID))
		}
		if activity.Category == "" {
			errs = append(errs, fmt.Errorf("activity %s missing required field: category", activity.ID))
		}
		if activity.TaskType == "" {
			errs = append(errs, fmt.Errorf("activity %s missing required field: taskType", activity.ID))
		} else if taskTypes[activity.TaskType] {
			errs = append(errs, fmt.Errorf("duplicate task type: %s", activity.TaskType))
		}
		taskTypes[activity.TaskType] = true

		if activity.ImplementationStatus != "" && !validStatuses[activity.ImplementationStatus] {
			errs = append(errs, fmt.Errorf("activity %s has invalid status %q", activity.ID, activity.ImplementationStatus))
		}
		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				errs = append(errs, fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout))
			}
		}
	}
	return errors.Join(errs...)
}
