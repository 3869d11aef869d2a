// Package seed loads default workflow definitions from a YAML file.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// File is the top-level document of a workflow seed file
type File struct {
	Workflows []Definition `yaml:"workflows"`
}

// Definition is one workflow in the seed file. IsActive defaults to true.
type Definition struct {
	Name             string                  `yaml:"name"`
	Description      string                  `yaml:"description"`
	TriggerType      string                  `yaml:"trigger_type"`
	TriggerCondition *string                 `yaml:"trigger_condition"`
	DelayHours       int                     `yaml:"delay_hours"`
	IsActive         *bool                   `yaml:"is_active"`
	Actions          []entity.WorkflowAction `yaml:"actions"`
}

// Seeder is the part of the workflow store the loader needs
type Seeder interface {
	Seed(ctx context.Context, defs []*entity.Workflow) (int, error)
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) ([]*entity.Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return []*entity.Workflow{}, nil
		}
		return nil, fmt.Errorf("failed to decode workflow seed: %w", err)
	}

	defs := make([]*entity.Workflow, 0, len(f.Workflows))
	for _, d := range f.Workflows {
		active := true
		if d.IsActive != nil {
			active = *d.IsActive
		}
		defs = append(defs, &entity.Workflow{
			Name:             d.Name,
			Description:      d.Description,
			TriggerType:      d.TriggerType,
			TriggerCondition: d.TriggerCondition,
			DelayHours:       d.DelayHours,
			IsActive:         active,
			Actions:          d.Actions,
		})
	}
	return defs, nil
}

// LoadFile parses path and seeds the store when it is empty. A missing
// file is not an error.
func LoadFile(ctx context.Context, path string, store Seeder, logger *zap.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logger.Warn("Workflow seed file not found, skipping", zap.String("path", path))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open workflow seed: %w", err)
	}
	defer f.Close()

	defs, err := Parse(f)
	if err != nil {
		return 0, err
	}

	n, err := store.Seed(ctx, defs)
	if err != nil {
		return 0, fmt.Errorf("failed to seed workflows from %s: %w", path, err)
	}

	if n > 0 {
		logger.Info("Seeded default workflows", zap.String("path", path), zap.Int("count", n))
	} else {
		logger.Debug("Workflows already present, seed skipped", zap.String("path", path))
	}
	return n, nil
}
