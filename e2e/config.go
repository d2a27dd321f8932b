package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_ADDR points at a live IM server (or the mockserver
	// binary); the whole suite is skipped when it is empty.
	ServerAddr string `envconfig:"E2E_SERVER_ADDR"`
	Token      string `envconfig:"E2E_TOKEN" default:"sekret"`
	BotID      int64  `envconfig:"E2E_BOT_ID" default:"99"`
	// E2E_DEBUG_JSON allows dumping full request/response frames as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
