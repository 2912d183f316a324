// Package strategy loads strategy documents from YAML or JSON files.
package strategy

// File is the on-disk form of a strategy document.
type File struct {
	ID          string            `yaml:"id" json:"id" validate:"required"`
	Name        string            `yaml:"name" json:"name"`
	Hypothesis  string            `yaml:"hypothesis" json:"hypothesis"`
	Instruments []string          `yaml:"instruments" json:"instruments"`
	Timeframe   string            `yaml:"timeframe" json:"timeframe"`
	Rules       map[string]string `yaml:"rules" json:"rules"`
	Parameters  []ParameterFile   `yaml:"parameters" json:"parameters" validate:"dive"`
	Assigned    map[string]any    `yaml:"assigned" json:"assigned"`
}

// ParameterFile is the on-disk form of one tunable parameter.
type ParameterFile struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Type    string   `yaml:"type" json:"type" validate:"required,oneof=boolean integer float choice"`
	Min     *float64 `yaml:"min" json:"min"`
	Max     *float64 `yaml:"max" json:"max"`
	Step    *float64 `yaml:"step" json:"step"`
	Choices []any    `yaml:"choices" json:"choices"`
	Default any      `yaml:"default" json:"default"`
}
