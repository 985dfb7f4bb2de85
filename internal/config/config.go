package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PVI"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Jobs      JobsConfig      `yaml:"jobs" envconfig:"JOBS"`
	PDF       PDFConfig       `yaml:"pdf" envconfig:"PDF"`
	Kafka     KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	MCP       MCPConfig       `yaml:"mcp" envconfig:"MCP"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"67108864"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"20"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pvinsight.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration.
// Relative entries are resolved against BaseDir.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	OutputsDir string `yaml:"outputs_dir" envconfig:"OUTPUTS_DIR" default:"outputs"`
	UploadsDir string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR" default:"uploads"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	OutputMode string `yaml:"output_mode" envconfig:"OUTPUT_MODE" default:"latest"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"54s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// AnalysisConfig holds the defaults applied when a request leaves a field empty.
type AnalysisConfig struct {
	ThresholdColumn        string  `yaml:"threshold_column" envconfig:"THRESHOLD_COLUMN" default:"E_Grid"`
	ThresholdValue         float64 `yaml:"threshold_value" envconfig:"THRESHOLD_VALUE" default:"0"`
	NightDisconnection     bool    `yaml:"night_disconnection" envconfig:"NIGHT_DISCONNECTION" default:"true"`
	TargetIrradianceUnit   string  `yaml:"target_irradiance_unit" envconfig:"TARGET_IRRADIANCE_UNIT" default:"kW/m²"`
	EnergyUnit             string  `yaml:"energy_unit" envconfig:"ENERGY_UNIT" default:"kWh/m²"`
	ResampleSubHourly      bool    `yaml:"resample_sub_hourly" envconfig:"RESAMPLE_SUB_HOURLY" default:"true"`
	CompareAlertMeanPct    float64 `yaml:"compare_alert_mean_pct" envconfig:"COMPARE_ALERT_MEAN_PCT" default:"5.0"`
	GHIBinWidth            int     `yaml:"ghi_bin_width" envconfig:"GHI_BIN_WIDTH" default:"200"`
	TimestampOutputs       bool    `yaml:"timestamp_outputs" envconfig:"TIMESTAMP_OUTPUTS" default:"true"`
	SolargisAssumedYear    int     `yaml:"solargis_assumed_year" envconfig:"SOLARGIS_ASSUMED_YEAR" default:"2001"`
	IncludeHourlyDataSheet bool    `yaml:"include_hourly_data_sheet" envconfig:"INCLUDE_HOURLY_DATA_SHEET" default:"true"`
}

// JobsConfig sizes the background job queue.
type JobsConfig struct {
	Workers     int           `yaml:"workers" envconfig:"WORKERS" default:"2"`
	QueueSize   int           `yaml:"queue_size" envconfig:"QUEUE_SIZE" default:"32"`
	StepTimeout time.Duration `yaml:"step_timeout" envconfig:"STEP_TIMEOUT" default:"5m"`
	JobTimeout  time.Duration `yaml:"job_timeout" envconfig:"JOB_TIMEOUT" default:"20m"`
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"2"`
	Retention   time.Duration `yaml:"retention" envconfig:"RETENTION" default:"24h"`
}

// PDFConfig controls the headless browser used to print reports.
type PDFConfig struct {
	Enabled    bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	ChromePath string        `yaml:"chrome_path" envconfig:"CHROME_PATH"`
	Headless   bool          `yaml:"headless" envconfig:"HEADLESS" default:"true"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
}

// KafkaConfig configures run-completed event publishing.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Brokers      []string      `yaml:"brokers" envconfig:"BROKERS" default:"localhost:9092"`
	Topic        string        `yaml:"topic" envconfig:"TOPIC" default:"pvinsight.runs"`
	BatchTimeout time.Duration `yaml:"batch_timeout" envconfig:"BATCH_TIMEOUT" default:"100ms"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"10s"`
}

// MCPConfig configures the stdio MCP server.
type MCPConfig struct {
	Name         string   `yaml:"name" envconfig:"NAME" default:"pvinsight"`
	AllowedRoots []string `yaml:"allowed_roots" envconfig:"ALLOWED_ROOTS"`
}

// Load loads configuration from environment variables and the first config
// file found in the usual locations.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile loads configuration from environment variables merged over the
// given YAML file. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs overlays the file config on env values that were left at
// their defaults. An environment variable that is explicitly set wins.
func mergeConfigs(fileConfig, envConfig Config) Config {
	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if fileConfig.Server.Port != 0 && !set("SERVER_PORT") {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.ReadTimeout != 0 && !set("SERVER_READ_TIMEOUT") {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if fileConfig.Server.WriteTimeout != 0 && !set("SERVER_WRITE_TIMEOUT") {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if fileConfig.Server.MaxUploadBytes != 0 && !set("SERVER_MAX_UPLOAD_BYTES") {
		envConfig.Server.MaxUploadBytes = fileConfig.Server.MaxUploadBytes
	}
	if len(fileConfig.Security.AllowedOrigins) > 0 && !set("SECURITY_ALLOWED_ORIGINS") {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	if fileConfig.Logging.Level != "" && !set("LOGGING_LEVEL") {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Logging.Output != "" && !set("LOGGING_OUTPUT") {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if fileConfig.Logging.FilePath != "" && !set("LOGGING_FILE_PATH") {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if fileConfig.Paths.BaseDir != "" && !set("PATHS_BASE_DIR") {
		envConfig.Paths.BaseDir = fileConfig.Paths.BaseDir
	}
	if fileConfig.Paths.OutputsDir != "" && !set("PATHS_OUTPUTS_DIR") {
		envConfig.Paths.OutputsDir = fileConfig.Paths.OutputsDir
	}
	if fileConfig.Paths.UploadsDir != "" && !set("PATHS_UPLOADS_DIR") {
		envConfig.Paths.UploadsDir = fileConfig.Paths.UploadsDir
	}
	if fileConfig.Paths.OutputMode != "" && !set("PATHS_OUTPUT_MODE") {
		envConfig.Paths.OutputMode = fileConfig.Paths.OutputMode
	}
	if fileConfig.Analysis.ThresholdColumn != "" && !set("ANALYSIS_THRESHOLD_COLUMN") {
		envConfig.Analysis.ThresholdColumn = fileConfig.Analysis.ThresholdColumn
	}
	if fileConfig.Analysis.ThresholdValue != 0 && !set("ANALYSIS_THRESHOLD_VALUE") {
		envConfig.Analysis.ThresholdValue = fileConfig.Analysis.ThresholdValue
	}
	if fileConfig.Analysis.TargetIrradianceUnit != "" && !set("ANALYSIS_TARGET_IRRADIANCE_UNIT") {
		envConfig.Analysis.TargetIrradianceUnit = fileConfig.Analysis.TargetIrradianceUnit
	}
	if fileConfig.Analysis.CompareAlertMeanPct != 0 && !set("ANALYSIS_COMPARE_ALERT_MEAN_PCT") {
		envConfig.Analysis.CompareAlertMeanPct = fileConfig.Analysis.CompareAlertMeanPct
	}
	if fileConfig.Jobs.Workers != 0 && !set("JOBS_WORKERS") {
		envConfig.Jobs.Workers = fileConfig.Jobs.Workers
	}
	if fileConfig.PDF.ChromePath != "" && !set("PDF_CHROME_PATH") {
		envConfig.PDF.ChromePath = fileConfig.PDF.ChromePath
	}
	if fileConfig.Kafka.Enabled && !set("KAFKA_ENABLED") {
		envConfig.Kafka.Enabled = true
	}
	if len(fileConfig.Kafka.Brokers) > 0 && !set("KAFKA_BROKERS") {
		envConfig.Kafka.Brokers = fileConfig.Kafka.Brokers
	}
	if fileConfig.Kafka.Topic != "" && !set("KAFKA_TOPIC") {
		envConfig.Kafka.Topic = fileConfig.Kafka.Topic
	}
	if len(fileConfig.MCP.AllowedRoots) > 0 && !set("MCP_ALLOWED_ROOTS") {
		envConfig.MCP.AllowedRoots = fileConfig.MCP.AllowedRoots
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}

	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	switch c.Paths.OutputMode {
	case OutputModeLatest, OutputModeFlat:
	default:
		return fmt.Errorf("invalid output mode: %q", c.Paths.OutputMode)
	}

	switch c.Analysis.TargetIrradianceUnit {
	case "W/m²", "kW/m²":
	default:
		return fmt.Errorf("target irradiance unit must be W/m² or kW/m², got %q", c.Analysis.TargetIrradianceUnit)
	}

	switch c.Analysis.EnergyUnit {
	case "Wh/m²", "kWh/m²":
	default:
		return fmt.Errorf("energy unit must be Wh/m² or kWh/m², got %q", c.Analysis.EnergyUnit)
	}

	if c.Analysis.GHIBinWidth <= 0 {
		return fmt.Errorf("analysis.ghi_bin_width must be positive")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka enabled but brokers or topic missing")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/pvinsight.log",
		},
		Paths: PathsConfig{
			OutputsDir: "outputs",
			UploadsDir: "uploads",
			LogsDir:    "logs",
			OutputMode: OutputModeLatest,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      54 * time.Second,
			PongWait:        60 * time.Second,
		},
		Analysis: AnalysisConfig{
			ThresholdColumn:        "E_Grid",
			NightDisconnection:     true,
			TargetIrradianceUnit:   "kW/m²",
			EnergyUnit:             "kWh/m²",
			ResampleSubHourly:      true,
			CompareAlertMeanPct:    5.0,
			GHIBinWidth:            200,
			TimestampOutputs:       true,
			SolargisAssumedYear:    2001,
			IncludeHourlyDataSheet: true,
		},
		Jobs: JobsConfig{
			Workers:     2,
			QueueSize:   32,
			StepTimeout: 5 * time.Minute,
			JobTimeout:  20 * time.Minute,
			MaxAttempts: 2,
			Retention:   24 * time.Hour,
		},
		PDF: PDFConfig{
			Enabled:  true,
			Headless: true,
			Timeout:  60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			Topic:        "pvinsight.runs",
			BatchTimeout: 100 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
		MCP: MCPConfig{
			Name: "pvinsight",
		},
	}
}
