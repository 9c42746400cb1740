package config_test

import (
	"errors"
	"testing"

	"github.com/DmMeta/ChordSeek/internal/config"
	"github.com/DmMeta/ChordSeek/internal/test"
)

type testConfig struct {
	FTSize        int    `env:"FT_SIZE" env-default:"7" validate:"gte=1,lte=32"`
	BootstrapMode string `env:"BOOTSTRAP_MODE" env-default:"init" validate:"oneof=init join"`
	BootstrapAddr string `env:"BOOTSTRAP_ADDR"`
	DataDir       string `env:"DATA_DIR" env-default:"./Data"`
}

// Validate mirrors the node daemon's cross-field rule.
func (c *testConfig) Validate() error {
	if c.BootstrapMode == "join" && c.BootstrapAddr == "" {
		return errors.New("bootstrap address required when joining")
	}
	return nil
}

type ConfigSuite struct {
	*test.Suite
}

func TestConfigSuite(t *testing.T) {
	test.Run(t, &ConfigSuite{Suite: test.NewSuite()})
}

func (s *ConfigSuite) TestDefaults() {
	var cfg testConfig
	s.Require().NoError(config.Load(&cfg))

	s.Equal(7, cfg.FTSize)
	s.Equal("init", cfg.BootstrapMode)
	s.Empty(cfg.BootstrapAddr)
	s.Equal("./Data", cfg.DataDir)
}

func (s *ConfigSuite) TestEnvOverrides() {
	s.T().Setenv("FT_SIZE", "3")
	s.T().Setenv("BOOTSTRAP_MODE", "join")
	s.T().Setenv("BOOTSTRAP_ADDR", "10.0.0.1:50051")

	var cfg testConfig
	s.Require().NoError(config.Load(&cfg))

	s.Equal(3, cfg.FTSize)
	s.Equal("join", cfg.BootstrapMode)
	s.Equal("10.0.0.1:50051", cfg.BootstrapAddr)
}

func (s *ConfigSuite) TestStructValidation() {
	s.T().Setenv("BOOTSTRAP_MODE", "cluster")

	var cfg testConfig
	s.Error(config.Load(&cfg))

	s.T().Setenv("BOOTSTRAP_MODE", "init")
	s.T().Setenv("FT_SIZE", "64")
	s.Error(config.Load(&cfg))
}

func (s *ConfigSuite) TestCrossFieldValidation() {
	// Joining without a bootstrap peer must be rejected up front; the node
	// would otherwise come up as a silent orphan.
	s.T().Setenv("BOOTSTRAP_MODE", "join")

	var cfg testConfig
	err := config.Load(&cfg)
	s.Require().Error(err)
	s.Contains(err.Error(), "bootstrap address required")

	s.T().Setenv("BOOTSTRAP_ADDR", "10.0.0.1:50051")
	s.NoError(config.Load(&cfg))
}
