package repl

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type IndexConfig struct {
	Name  string `yaml:"name"`
	Field string `yaml:"field"`
	// Kind is eager, hash or lazy; empty means eager.
	Kind string `yaml:"kind"`
}

type CollectionConfig struct {
	Name    string           `yaml:"name"`
	Key     string           `yaml:"key"`
	Indexes []IndexConfig    `yaml:"indexes"`
	Values  []map[string]any `yaml:"values"`
}

type Config struct {
	Prompt  string `yaml:"prompt"`
	History string `yaml:"history"`
	// Metrics is an address to serve /metrics on from the start; the
	// metrics command does the same later.
	Metrics     string             `yaml:"metrics"`
	Collections []CollectionConfig `yaml:"collections"`
}

func DefaultConfig() *Config {
	return &Config{
		Prompt:  "abacus> ",
		History: ".abacus_history",
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "abacus> "
	}
	if cfg.History == "" {
		cfg.History = ".abacus_history"
	}
	return cfg, nil
}

// normalize pushes a yaml-decoded document through json, so seeded values
// carry the same dynamic types as documents typed into the prompt (numbers
// as float64, in particular). Index and key lookups compare dynamic types.
func normalize(doc map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(doc))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
