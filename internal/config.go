package internal

import (
	"time"
)

type Config struct {
	LogLevel     string `env:"LOG_LEVEL,required=true"`
	BotID        int64  `env:"BOT_ID,required=true"`
	ServerAddr   string `env:"SERVER_ADDR,required=true"`
	SessionToken string `env:"SESSION_TOKEN,required=true"`

	DialTimeout time.Duration `env:"DIAL_TIMEOUT,required=true"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT,required=true"`
	SinkTimeout time.Duration `env:"SINK_TIMEOUT,required=true"`

	BufferSize     int `env:"BUFFER_SIZE,required=true"`
	PushBufferSize int `env:"PUSH_BUFFER_SIZE,required=true"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`

	LatencyThreshold     time.Duration `env:"LATENCY_THRESHOLD,required=true"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,required=true"`

	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LimitAuditEntries *int          `env:"LIMIT_AUDIT_ENTRIES"`
	TimelineCapacity  int           `env:"TIMELINE_CAPACITY,required=true"`
	GCInterval        time.Duration `env:"GC_INTERVAL,default=10m"`

	// WordsFilepath points to an extra banned-words list merged with the
	// embedded ones. Empty means embedded lists only.
	WordsFilepath string `env:"WORDS_FILEPATH"`

	// DebugPort exposes the BadgerDB inspector when non zero.
	DebugPort int `env:"DEBUG_PORT"`
}
