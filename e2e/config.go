package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DEBUG_FRAMES dumps every websocket frame to the test log
	DebugFrames bool `envconfig:"E2E_DEBUG_FRAMES" default:"false"`
	// E2E_READ_TIMEOUT bounds how long a step waits for one frame
	ReadTimeout time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"5s"`
	// E2E_BUFFER_SIZE is the per-connection sink capacity
	BufferSize int `envconfig:"E2E_BUFFER_SIZE" default:"64"`
	// E2E_SINK_TIMEOUT is the coordinator's delivery timeout
	SinkTimeout time.Duration `envconfig:"E2E_SINK_TIMEOUT" default:"1s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
