// Package config loads the YAML files that configure verification limits and seed workflows.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed workflow_seed.schema.json
var workflowSeedSchema string

// ErrInvalidSeed indicates a seed document that does not match the schema.
var ErrInvalidSeed = errors.New("invalid workflow seed")

type EdgeSeed struct {
	From   models.StatusCode `yaml:"from"`
	To     models.StatusCode `yaml:"to"`
	Type   models.EdgeType   `yaml:"type"`
	Active *bool             `yaml:"active"`
}

type WorkflowSeed struct {
	ID               string              `yaml:"id"`
	Name             string              `yaml:"name"`
	Namespace        models.Namespace    `yaml:"namespace"`
	EntryStatus      models.StatusCode   `yaml:"entry_status"`
	TerminalStatuses []models.StatusCode `yaml:"terminal_statuses"`
	Edges            []EdgeSeed          `yaml:"edges"`
}

type SeedFile struct {
	Workflows []WorkflowSeed `yaml:"workflows"`
}

// Workflow converts the seed to its model. Edges are active unless stated otherwise.
func (s WorkflowSeed) Workflow() (*models.Workflow, []models.TransitionEdge) {
	workflow := &models.Workflow{
		ID:               s.ID,
		Name:             s.Name,
		Namespace:        s.Namespace,
		EntryStatus:      s.EntryStatus,
		TerminalStatuses: s.TerminalStatuses,
	}

	edges := make([]models.TransitionEdge, 0, len(s.Edges))

	for _, e := range s.Edges {
		active := true
		if e.Active != nil {
			active = *e.Active
		}

		edges = append(edges, models.TransitionEdge{
			WorkflowID: s.ID,
			From:       e.From,
			To:         e.To,
			Type:       e.Type,
			IsActive:   active,
		})
	}

	return workflow, edges
}

// ParseWorkflowSeeds validates data against the seed schema and decodes it.
func ParseWorkflowSeeds(data []byte) (*SeedFile, error) {
	var document any

	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML seed: %w", err)
	}

	err = validateSeed(document)
	if err != nil {
		return nil, err
	}

	var seeds SeedFile

	err = yaml.Unmarshal(data, &seeds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode YAML seed: %w", err)
	}

	return &seeds, nil
}

func validateSeed(document any) error {
	schemaLoader := gojsonschema.NewStringLoader(workflowSeedSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidSeed, strings.Join(problems, "; "))
	}

	return nil
}

// LoadWorkflowSeeds reads and validates a seed file.
func LoadWorkflowSeeds(filepath string) (*SeedFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", filepath, err)
	}

	return ParseWorkflowSeeds(data)
}

// Seeder stores a workflow and upserts its edges. *statusgraph.Graph implements it.
type Seeder interface {
	Seed(ctx context.Context, workflow *models.Workflow, edges []models.TransitionEdge) error
}

// Apply seeds every workflow of the file in order.
func (f *SeedFile) Apply(ctx context.Context, seeder Seeder) error {
	for _, seed := range f.Workflows {
		workflow, edges := seed.Workflow()

		err := seeder.Seed(ctx, workflow, edges)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", seed.ID, err)
		}
	}

	return nil
}
