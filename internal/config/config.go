package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models gigline.yml.
type Config struct {
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Plans     map[string]Plan `yaml:"plans"`
	Assistant struct {
		// EntitledPlan is the minimum plan tier that may use the assistant
		// at all, independent of quota.
		EntitledPlan  string `yaml:"entitled_plan"`
		BulkThreshold int    `yaml:"bulk_threshold"`
	} `yaml:"assistant"`
	Webhook struct {
		BaseURL string `yaml:"base_url"`
		Secret  string `yaml:"secret"`
	} `yaml:"webhook"`
}

// Plan describes one subscription tier.
type Plan struct {
	Description    string `yaml:"description"`
	MonthlyActions int    `yaml:"monthly_actions"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run gig init first", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Plans) == 0 {
		return fmt.Errorf("config.plans is required")
	}
	for name, plan := range c.Plans {
		if name == "" {
			return fmt.Errorf("config.plans contains empty plan name")
		}
		if plan.MonthlyActions <= 0 {
			return fmt.Errorf("plan %s must have monthly_actions > 0", name)
		}
	}
	if c.Assistant.EntitledPlan == "" {
		return fmt.Errorf("config.assistant.entitled_plan is required")
	}
	if _, ok := c.Plans[c.Assistant.EntitledPlan]; !ok {
		return fmt.Errorf("config.assistant.entitled_plan %s is not a defined plan", c.Assistant.EntitledPlan)
	}
	if c.Assistant.BulkThreshold <= 0 {
		return fmt.Errorf("config.assistant.bulk_threshold must be > 0")
	}
	if c.Webhook.BaseURL != "" && c.Webhook.Secret == "" {
		return fmt.Errorf("config.webhook.secret is required when base_url is set")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `auth:
  jwt_secret: ""

plans:
  free:
    description: "Getting started"
    monthly_actions: 50
  pro:
    description: "Independent freelancers"
    monthly_actions: 500
  studio:
    description: "Agencies and power users"
    monthly_actions: 5000

assistant:
  entitled_plan: studio
  bulk_threshold: 5

webhook:
  base_url: ""
  secret: ""
`
