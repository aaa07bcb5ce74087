package config

import (
	"fmt"
	"os"
	"strings"

	"trade-agent/src/helpers"
	"trade-agent/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// EnvProduction is the environment name that hard-disables unsafe toggles.
const EnvProduction = "production"

// Config wraps models.MAgentConfig and provides business logic methods
type Config struct {
	*models.MAgentConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MAgentConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &helpers.ConfigurationError{AgentError: helpers.AgentError{
			Message: fmt.Sprintf("failed to read config file '%s'", configPath), Cause: err}}
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MAgentConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, &helpers.ConfigurationError{AgentError: helpers.AgentError{
			Message: "failed to parse config from YAML", Cause: err}}
	}

	config := &Config{MAgentConfig: &modelConfig}
	config.applyEnvOverrides()

	// 3. Safety invariant, enforced before validation so a bad file cannot
	// smuggle the bypass into production.
	EnforceSafety(config.MAgentConfig)

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyEnvOverrides pulls secrets and the environment switch from the process
// environment so they never have to live in the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENT_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("AGENT_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("AGENT_KILL_SECRET"); v != "" {
		c.KillSecret = v
	}
	if v := os.Getenv("AGENT_DB_CONNECTION"); v != "" {
		c.Storage.DBConnectionString = v
	}
}

// -----------------------------------------------------------------------------

// EnforceSafety forces the unhealthy-swarm bypass off in production. Applied
// on load, on persisted-state restore, and inside update validation.
func EnforceSafety(cfg *models.MAgentConfig) {
	if strings.EqualFold(cfg.Environment, EnvProduction) {
		cfg.AllowUnhealthySwarm = false
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	return ValidateUpdate(c.MAgentConfig, strings.EqualFold(c.Environment, EnvProduction))
}

// -----------------------------------------------------------------------------

// ValidateUpdate checks a candidate config. In production, an update that
// asks for the unhealthy-swarm bypass is rejected outright rather than
// silently corrected, so the operator sees the refusal.
func ValidateUpdate(cfg *models.MAgentConfig, production bool) error {
	if cfg.Name == "" {
		return helpers.NewValidationError("agent name cannot be empty")
	}

	if cfg.Host == "" {
		return helpers.NewValidationError("server host cannot be empty")
	}
	if cfg.Port <= 1024 || cfg.Port > 65535 {
		return helpers.NewValidationError("invalid server port number: %d (must be between 1025 and 65535)", cfg.Port)
	}

	if production && cfg.AllowUnhealthySwarm {
		return helpers.NewValidationError("allow_unhealthy_swarm cannot be enabled in production")
	}

	if cfg.TickSeconds <= 0 {
		return helpers.NewValidationError("tick interval must be greater than 0")
	}
	if cfg.PollIntervalSeconds <= 0 || cfg.ResearchIntervalSeconds <= 0 || cfg.AnalystIntervalSeconds <= 0 {
		return helpers.NewValidationError("stage intervals must be greater than 0")
	}

	if cfg.MaxPositions <= 0 {
		return helpers.NewValidationError("max positions must be greater than 0")
	}
	if cfg.PositionBasePercent <= 0 || cfg.PositionBasePercent > 100 {
		return helpers.NewValidationError("position base percent must be in (0, 100]")
	}
	if cfg.TakeProfitPercent <= 0 || cfg.StopLossPercent <= 0 {
		return helpers.NewValidationError("take-profit and stop-loss percents must be greater than 0")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return helpers.NewValidationError("confidence threshold must be in [0, 1]")
	}

	if cfg.APIToken != "" && cfg.APIToken == cfg.KillSecret {
		return helpers.NewValidationError("kill secret must differ from the api token")
	}

	// Validate Storage configuration
	if cfg.Storage.DBType == "" {
		return helpers.NewValidationError("database type cannot be empty")
	}
	if cfg.Storage.DBType == "sqlite" && cfg.Storage.DBPath == "" {
		return helpers.NewValidationError("database path cannot be empty for sqlite")
	}
	if cfg.Storage.MaxStateBytes <= 0 {
		return helpers.NewValidationError("storage max state bytes must be greater than 0")
	}

	// Validate Network configuration
	if cfg.Network.RequestTimeout <= 0 {
		return helpers.NewValidationError("request timeout must be greater than 0")
	}
	if cfg.Network.MaxRetries < 0 {
		return helpers.NewValidationError("max retries cannot be negative")
	}

	if cfg.DailyReadBudget <= 0 {
		return helpers.NewValidationError("daily read budget must be greater than 0")
	}

	if len(cfg.Symbols) == 0 {
		return helpers.NewValidationError("at least one symbol must be configured")
	}
	if len(cfg.Feeds) == 0 {
		return helpers.NewValidationError("at least one signal feed must be configured")
	}
	for _, feed := range cfg.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return helpers.NewValidationError("signal feeds require a name and a url")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MAgentConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
