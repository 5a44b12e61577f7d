package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_PUSH_ADDR is the push endpoint of a running chatsync; the suite is skipped when empty
	PushAddr string `envconfig:"E2E_PUSH_ADDR"`
	// E2E_PUSH_SECRET signs the bearer token when the endpoint requires one
	PushSecret string `envconfig:"E2E_PUSH_SECRET"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
