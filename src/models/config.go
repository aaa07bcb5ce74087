package models

// -----------------------------------------------------------------------------
// MAgentConfig is the flat record of tunable agent parameters.
// Treated as an immutable snapshot per tick and replaced wholesale on
// validated updates.
// -----------------------------------------------------------------------------

type MAgentConfig struct {
	Name        string `yaml:"name" json:"name"`
	Environment string `yaml:"environment" json:"environment"` // "production" hard-disables unsafe toggles
	Enabled     bool   `yaml:"enabled" json:"enabled"`

	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Auth secrets. KillSecret must differ from APIToken.
	APIToken   string `yaml:"api_token" json:"-"`
	KillSecret string `yaml:"kill_secret" json:"-"`

	// Base stage intervals in seconds. The optimizer adapts the live values
	// between per-stage floors and ceilings derived from these.
	TickSeconds             int `yaml:"tick_seconds" json:"tick_seconds"`
	PollIntervalSeconds     int `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	ResearchIntervalSeconds int `yaml:"research_interval_seconds" json:"research_interval_seconds"`
	AnalystIntervalSeconds  int `yaml:"analyst_interval_seconds" json:"analyst_interval_seconds"`

	// Position management.
	MaxPositions        int     `yaml:"max_positions" json:"max_positions"`
	PositionBasePercent float64 `yaml:"position_base_percent" json:"position_base_percent"`
	TakeProfitPercent   float64 `yaml:"take_profit_percent" json:"take_profit_percent"`
	StopLossPercent     float64 `yaml:"stop_loss_percent" json:"stop_loss_percent"`
	TrailingStopPercent float64 `yaml:"trailing_stop_percent" json:"trailing_stop_percent"`

	// Research.
	LLMModel            string  `yaml:"llm_model" json:"llm_model"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	MaxResearchPerTick  int     `yaml:"max_research_per_tick" json:"max_research_per_tick"`

	// Asset class toggles.
	CryptoEnabled  bool `yaml:"crypto_enabled" json:"crypto_enabled"`
	OptionsEnabled bool `yaml:"options_enabled" json:"options_enabled"`

	// AllowUnhealthySwarm lets a tick proceed when the swarm registry reports
	// unhealthy. Forced false whenever Environment is "production" (on load,
	// on restore, and on update).
	AllowUnhealthySwarm bool `yaml:"allow_unhealthy_swarm" json:"allow_unhealthy_swarm"`

	// Daily budget for scarce external reads (token bucket + hard counter).
	DailyReadBudget int `yaml:"daily_read_budget" json:"daily_read_budget"`

	Symbols       []string           `yaml:"symbols" json:"symbols"`
	Feeds         []MFeedConfig      `yaml:"feeds" json:"feeds"`
	SourceWeights map[string]float64 `yaml:"source_weights" json:"source_weights"`

	Storage  MStorageConfig  `yaml:"storage" json:"storage"`
	Services MServicesConfig `yaml:"services" json:"services"`
	Network  MNetworkConfig  `yaml:"network" json:"network"`
}

// -----------------------------------------------------------------------------

// MFeedConfig describes one JSON signal feed endpoint.
type MFeedConfig struct {
	Name     string  `yaml:"name" json:"name"`
	URL      string  `yaml:"url" json:"url"`
	Weight   float64 `yaml:"weight" json:"weight"`
	Budgeted bool    `yaml:"budgeted" json:"budgeted"` // counts against the daily read budget
}

// -----------------------------------------------------------------------------

type MStorageConfig struct {
	DBType             string `yaml:"db_type" json:"db_type"`
	DBPath             string `yaml:"db_path" json:"db_path"`
	DBConnectionString string `yaml:"db_connection_string" json:"-"`
	MaxStateBytes      int    `yaml:"max_state_bytes" json:"max_state_bytes"`
}

// -----------------------------------------------------------------------------

// MServicesConfig holds the endpoints of external collaborators.
type MServicesConfig struct {
	RiskManagerURL   string `yaml:"risk_manager_url" json:"risk_manager_url"`
	SwarmRegistryURL string `yaml:"swarm_registry_url" json:"swarm_registry_url"`
	LLMBackendURL    string `yaml:"llm_backend_url" json:"llm_backend_url"`
	BrokerURL        string `yaml:"broker_url" json:"broker_url"`
}

// -----------------------------------------------------------------------------

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout" json:"timeout"`
	MaxRetries     int    `yaml:"retries" json:"retries"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy so a tick can hold a stable snapshot while an
// operator update swaps the live config.
func (c *MAgentConfig) Clone() *MAgentConfig {
	cp := *c
	cp.Symbols = append([]string(nil), c.Symbols...)
	cp.Feeds = append([]MFeedConfig(nil), c.Feeds...)
	if c.SourceWeights != nil {
		cp.SourceWeights = make(map[string]float64, len(c.SourceWeights))
		for k, v := range c.SourceWeights {
			cp.SourceWeights[k] = v
		}
	}
	return &cp
}
