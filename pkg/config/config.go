package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Backend struct {
		Type string `yaml:"type"` // "clickhouse" or "memory"
	} `yaml:"backend"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		OutcomesTopic    string   `yaml:"outcomes_topic"`
		AuditTopic       string   `yaml:"audit_topic"`
		PredictionsTopic string   `yaml:"predictions_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Gateway struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		Assets         []string      `yaml:"assets"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Staleness      time.Duration `yaml:"staleness"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	} `yaml:"gateway"`
	Engine    EngineConfig    `yaml:"engine"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Strategies struct {
		File string `yaml:"file"`
	} `yaml:"strategies"`
}

// EngineConfig holds the signal lifecycle and classification thresholds.
type EngineConfig struct {
	Workers            int           `yaml:"workers"`
	ValidityWindow     time.Duration `yaml:"validity_window"`
	GenerationInterval time.Duration `yaml:"generation_interval"`
	ResolutionInterval time.Duration `yaml:"resolution_interval"`
	EvaluationInterval time.Duration `yaml:"evaluation_interval"`

	MinDecisionSample  int     `yaml:"min_decision_sample"`
	SurvivalWinRate    float64 `yaml:"survival_win_rate"`     // percent
	DrawdownCap        float64 `yaml:"drawdown_cap"`          // percent
	MinAvgPnl          float64 `yaml:"min_avg_pnl"`           // percent, small negative
	MinSharpe          float64 `yaml:"min_sharpe"`
	MinPromotionSample int     `yaml:"min_promotion_sample"`
	PromotionWinRate   float64 `yaml:"promotion_win_rate"`    // percent
	PromotionPF        float64 `yaml:"promotion_profit_factor"`
	PromotionSharpe    float64 `yaml:"promotion_sharpe"`

	ChampionshipWinRate float64 `yaml:"championship_win_rate"` // secondary bar for UNDER_REVIEW
	ChampionshipTopN    int     `yaml:"championship_top_n"`
	WinRateWeight       float64 `yaml:"win_rate_weight"`
	ProfitFactorWeight  float64 `yaml:"profit_factor_weight"`
	SharpeWeight        float64 `yaml:"sharpe_weight"`
}

// ConsensusConfig holds consensus analyzer settings.
type ConsensusConfig struct {
	ClusterThreshold float64 `yaml:"cluster_threshold"`
	TopPairs         int     `yaml:"top_pairs"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ASSETS"); v != "" {
		c.Gateway.Assets = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("STRATEGIES_FILE"); v != "" {
		c.Strategies.File = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Workers <= 0 {
		c.Engine.Workers = 8
	}
	if c.Engine.ValidityWindow <= 0 {
		c.Engine.ValidityWindow = 24 * time.Hour
	}
	if c.Engine.GenerationInterval <= 0 {
		c.Engine.GenerationInterval = time.Minute
	}
	if c.Engine.ResolutionInterval <= 0 {
		c.Engine.ResolutionInterval = 30 * time.Second
	}
	if c.Engine.EvaluationInterval <= 0 {
		c.Engine.EvaluationInterval = 5 * time.Minute
	}
	if c.Engine.MinDecisionSample <= 0 {
		c.Engine.MinDecisionSample = 10
	}
	if c.Engine.SurvivalWinRate <= 0 {
		c.Engine.SurvivalWinRate = 45
	}
	if c.Engine.DrawdownCap <= 0 {
		c.Engine.DrawdownCap = 25
	}
	if c.Engine.MinAvgPnl == 0 {
		c.Engine.MinAvgPnl = -0.5
	}
	if c.Engine.MinSharpe == 0 {
		c.Engine.MinSharpe = 0.1
	}
	if c.Engine.MinPromotionSample <= 0 {
		c.Engine.MinPromotionSample = 30
	}
	if c.Engine.PromotionWinRate <= 0 {
		c.Engine.PromotionWinRate = 60
	}
	if c.Engine.PromotionPF <= 0 {
		c.Engine.PromotionPF = 1.5
	}
	if c.Engine.PromotionSharpe <= 0 {
		c.Engine.PromotionSharpe = 1.0
	}
	if c.Engine.ChampionshipWinRate <= 0 {
		c.Engine.ChampionshipWinRate = 55
	}
	if c.Engine.ChampionshipTopN <= 0 {
		c.Engine.ChampionshipTopN = 10
	}
	if c.Engine.WinRateWeight == 0 && c.Engine.ProfitFactorWeight == 0 && c.Engine.SharpeWeight == 0 {
		c.Engine.WinRateWeight = 0.5
		c.Engine.ProfitFactorWeight = 0.3
		c.Engine.SharpeWeight = 0.2
	}
	if c.Consensus.ClusterThreshold <= 0 {
		c.Consensus.ClusterThreshold = 0.7
	}
	if c.Consensus.TopPairs <= 0 {
		c.Consensus.TopPairs = 5
	}
	if c.Gateway.Staleness <= 0 {
		c.Gateway.Staleness = 30 * time.Second
	}
	if c.Gateway.FetchTimeout <= 0 {
		c.Gateway.FetchTimeout = 2 * time.Second
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "sigforge"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "clickhouse" && c.Backend.Type != "memory" {
		return fmt.Errorf("backend.type must be 'clickhouse' or 'memory', got '%s'", c.Backend.Type)
	}
	if len(c.Gateway.Assets) == 0 {
		return fmt.Errorf("gateway.assets cannot be empty")
	}
	if c.Strategies.File == "" {
		return fmt.Errorf("strategies.file is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
