package main

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	LogLevel            string        `env:"LOG_LEVEL,required=true" validate:"oneof=DEBUG INFO WARN ERROR"`
	BackendURL          string        `env:"BACKEND_URL,required=true" validate:"url"`
	BackendTimeout      time.Duration `env:"BACKEND_TIMEOUT,default=10s" validate:"gt=0"`
	BackendMaxRetries   int           `env:"BACKEND_MAX_RETRIES,default=3" validate:"gte=0,lte=10"`
	BackendRetryBackoff time.Duration `env:"BACKEND_RETRY_BACKOFF,default=500ms"`
	SessionToken        string        `env:"SESSION_TOKEN,required=true"`
	SessionSecret       string        `env:"SESSION_SECRET,required=true"`
	PeerLookupTimeout   time.Duration `env:"PEER_LOOKUP_TIMEOUT,default=3s" validate:"gt=0"`
	RefreshInterval     time.Duration `env:"REFRESH_INTERVAL,default=0s"`
	FCMEndpoint         string        `env:"FCM_ENDPOINT" validate:"omitempty,url"`
	FCMServerKey        string        `env:"FCM_SERVER_KEY,required=true"`
	FCMTimeout          time.Duration `env:"FCM_TIMEOUT,default=5s" validate:"gt=0"`
	DeviceToken         string        `env:"DEVICE_TOKEN,required=true"`
	BufferSize          int           `env:"BUFFER_SIZE,default=256" validate:"gt=0"`
	SinkTimeout         time.Duration `env:"SINK_TIMEOUT,default=1s" validate:"gt=0"`
	PublishWait         time.Duration `env:"PUBLISH_WAIT,default=500ms"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=2s" validate:"gt=0"`
	MetricInterval      time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	Host                string        `env:"HOST,default=localhost"`
	Port                int           `env:"PORT,default=50070" validate:"gt=0,lt=65536"`
	PushSecret          string        `env:"PUSH_SECRET"`
	PeerID              string        `env:"PEER_ID"`
	ConversationID      string        `env:"CONVERSATION_ID"`
	Colours             bool          `env:"COLOURS,default=true"`
	DebugPort           int           `env:"DEBUG_PORT,default=8081"`
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}
