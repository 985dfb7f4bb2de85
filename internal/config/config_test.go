package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileContent string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env and no file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, "outputs", cfg.Paths.OutputsDir)
				assert.Equal(t, OutputModeLatest, cfg.Paths.OutputMode)
				assert.Equal(t, "E_Grid", cfg.Analysis.ThresholdColumn)
				assert.True(t, cfg.Analysis.NightDisconnection)
				assert.Equal(t, "kW/m²", cfg.Analysis.TargetIrradianceUnit)
				assert.Equal(t, 5.0, cfg.Analysis.CompareAlertMeanPct)
				assert.Equal(t, 2, cfg.Jobs.Workers)
				assert.False(t, cfg.Kafka.Enabled)
				assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
			},
		},
		{
			name: "environment overrides",
			setupEnv: func(t *testing.T) {
				t.Setenv("PVI_SERVER_PORT", "9090")
				t.Setenv("PVI_ANALYSIS_THRESHOLD_COLUMN", "EOutInv")
				t.Setenv("PVI_JOBS_WORKERS", "4")
				t.Setenv("PVI_KAFKA_BROKERS", "k1:9092,k2:9092")
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "EOutInv", cfg.Analysis.ThresholdColumn)
				assert.Equal(t, 4, cfg.Jobs.Workers)
				assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
			},
		},
		{
			name: "file values fill in unset env",
			fileContent: `
server:
  port: 7070
paths:
  outputs_dir: /srv/pv/outputs
analysis:
  threshold_value: 450
kafka:
  enabled: true
  topic: pv.runs
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "/srv/pv/outputs", cfg.Paths.OutputsDir)
				assert.Equal(t, 450.0, cfg.Analysis.ThresholdValue)
				assert.True(t, cfg.Kafka.Enabled)
				assert.Equal(t, "pv.runs", cfg.Kafka.Topic)
			},
		},
		{
			name: "env wins over file",
			setupEnv: func(t *testing.T) {
				t.Setenv("PVI_SERVER_PORT", "6060")
			},
			fileContent: "server:\n  port: 7070\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6060, cfg.Server.Port)
			},
		},
		{
			name: "invalid port",
			setupEnv: func(t *testing.T) {
				t.Setenv("PVI_SERVER_PORT", "99999")
			},
			wantErr: true,
		},
		{
			name: "invalid irradiance unit",
			setupEnv: func(t *testing.T) {
				t.Setenv("PVI_ANALYSIS_TARGET_IRRADIANCE_UNIT", "Wh/m²")
			},
			wantErr: true,
		},
		{
			name:        "malformed yaml",
			fileContent: "server: [",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}

			path := ""
			if tt.fileContent != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.fileContent), 0644))
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.Jobs.Workers = 0 }, wantErr: "jobs.workers"},
		{name: "bad log output", mutate: func(c *Config) { c.Logging.Output = "syslog" }, wantErr: "logging output"},
		{name: "bad output mode", mutate: func(c *Config) { c.Paths.OutputMode = "runs" }, wantErr: "output mode"},
		{name: "bad energy unit", mutate: func(c *Config) { c.Analysis.EnergyUnit = "kW" }, wantErr: "energy unit"},
		{name: "kafka without topic", mutate: func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Topic = ""
		}, wantErr: "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
