package config

import (
	"time"

	"github.com/zawrotmc/streamflow/internal/events"
	pkgconfig "github.com/zawrotmc/streamflow/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Stream    StreamConfig
	Admin     AdminConfig
	Session   SessionConfig
	WebSocket WebSocketConfig
	Events    events.Config
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies may set X-Forwarded-For. Empty trusts nobody and the
	// client address is the socket peer.
	TrustedProxies []string `mapstructure:"-"`
}

type StreamConfig struct {
	Title string
	// Key is the initial stream key. Blank means generate one.
	Key string
	// RTMPURL is shown to admins as the ingest address. Blank means derive
	// it from the request host.
	RTMPURL string `mapstructure:"rtmp_url"`
	// HLSOrigin is where playback requests are redirected.
	HLSOrigin string `mapstructure:"hls_origin"`
	// ControlURL is the engine endpoint that drops a publisher.
	ControlURL    string `mapstructure:"control_url"`
	LogRetention  int    `mapstructure:"log_retention"`
	AdminLogLimit int    `mapstructure:"admin_log_limit"`
}

type AdminConfig struct {
	Password string
	// PasswordHash is a bcrypt hash. When set it takes precedence over Password.
	PasswordHash  string        `mapstructure:"password_hash"`
	SessionSecret string        `mapstructure:"session_secret"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	LoginRate     float64       `mapstructure:"login_rate"`
	LoginBurst    int           `mapstructure:"login_burst"`
}

type SessionConfig struct {
	Driver string // "memory", "redis"
	Redis  SessionRedisConfig
}

type SessionRedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string `mapstructure:"key_prefix"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("stream.title", "Live Stream")
	v.SetDefault("stream.key", "")
	v.SetDefault("stream.rtmp_url", "")
	v.SetDefault("stream.hls_origin", "http://localhost:8888")
	v.SetDefault("stream.control_url", "")
	v.SetDefault("stream.log_retention", 100)
	v.SetDefault("stream.admin_log_limit", 20)
	v.SetDefault("server.trusted_proxies", "")
	v.SetDefault("admin.password", "123")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.session_secret", "")
	v.SetDefault("admin.cookie_name", "streamflow_session")
	v.SetDefault("admin.cookie_secure", false)
	v.SetDefault("admin.session_ttl", "24h")
	v.SetDefault("admin.login_rate", 1.0)
	v.SetDefault("admin.login_burst", 5)
	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.redis.address", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "streamflow:session:")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.send_timeout", "250ms")
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.redis.channel", events.DefaultRedisChannel)
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", events.DefaultKafkaTopic)
	v.SetDefault("events.kafka.partitions", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("stream.key", "STREAM_KEY")
	v.BindEnv("stream.title", "STREAM_TITLE")
	v.BindEnv("stream.hls_origin", "HLS_ORIGIN")
	v.BindEnv("stream.control_url", "RTMP_CONTROL_URL")
	v.BindEnv("server.trusted_proxies", "TRUSTED_PROXIES")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")
	v.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	v.BindEnv("admin.session_secret", "SESSION_SECRET")
	v.BindEnv("session.driver", "SESSION_DRIVER")
	v.BindEnv("session.redis.address", "REDIS_ADDRESS")
	v.BindEnv("session.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.kafka.topic", "KAFKA_EVENTS_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.TrustedProxies = pkgconfig.StringSlice(v, "server.trusted_proxies")

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.Admin.SessionTTL = pkgconfig.Duration(v, "admin.session_ttl", 24*time.Hour)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.SendTimeout = pkgconfig.Duration(v, "websocket.send_timeout", 250*time.Millisecond)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", 3*time.Second)

	return &cfg, nil
}

