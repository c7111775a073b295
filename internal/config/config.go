package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"3000"`

	// DB
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"` // postgres | sqlite
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	MaxOpenConns   int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns   int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"10"`

	// JWT issued by the external auth provider
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// CORS / websocket origin checks
	ClientURL      string   `envconfig:"CLIENT_URL"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	// Broker
	SubscriberBuffer int    `envconfig:"SUBSCRIBER_BUFFER" default:"64"`
	RedisURL         string `envconfig:"REDIS_URL"`
	RedisChannel     string `envconfig:"REDIS_CHANNEL" default:"rideeasy.notifications"`
	PusherAppID      string `envconfig:"PUSHER_APP_ID"`
	PusherKey        string `envconfig:"PUSHER_KEY"`
	PusherSecret     string `envconfig:"PUSHER_SECRET"`
	PusherCluster    string `envconfig:"PUSHER_CLUSTER"`
	DiscordWebhook   string `envconfig:"DISCORD_WEBHOOK_URL"`
	SlackWebhook     string `envconfig:"SLACK_WEBHOOK_URL"`

	// Emit queue
	EmitBuffer   int    `envconfig:"EMIT_BUFFER" default:"256"`
	EmitWorkers  int    `envconfig:"EMIT_WORKERS" default:"4"`
	RabbitURL    string `envconfig:"RABBIT_URL"`
	EmitExchange string `envconfig:"EMIT_EXCHANGE" default:"notification.exchange"`
	EmitQueue    string `envconfig:"EMIT_QUEUE" default:"notification.emit.q"`
	EmitDLX      string `envconfig:"EMIT_DLX" default:"notification.dlx"`

	// Change feed
	ChangeFeedChannel string `envconfig:"CHANGEFEED_CHANNEL" default:"booking_changes"`
	ChangeFeedListen  bool   `envconfig:"CHANGEFEED_LISTEN" default:"false"`

	// Scheduler
	CompletionSweep time.Duration `envconfig:"COMPLETION_SWEEP" default:"5m"`

	LogFile string `envconfig:"LOG_FILE"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return c, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.ChangeFeedListen && c.DatabaseDriver != "postgres" {
		return c, fmt.Errorf("CHANGEFEED_LISTEN requires the postgres driver")
	}
	return c, nil
}

// Watch configures the terminal client.
type Watch struct {
	APIURL   string `envconfig:"WATCH_API_URL" default:"http://localhost:3000/api"`
	Token    string `envconfig:"WATCH_TOKEN"`
	Audience string `envconfig:"WATCH_AUDIENCE"`

	// without WATCH_TOKEN a development token is signed for WATCH_USER
	User      string `envconfig:"WATCH_USER"`
	Role      string `envconfig:"WATCH_ROLE" default:"user"`
	JWTSecret string `envconfig:"JWT_SECRET"`
}

func LoadWatch() (Watch, error) {
	var w Watch
	if err := envconfig.Process("", &w); err != nil {
		return w, err
	}
	if w.Token == "" && (w.User == "" || w.JWTSecret == "") {
		return w, fmt.Errorf("set WATCH_TOKEN, or WATCH_USER and JWT_SECRET")
	}
	return w, nil
}

// Origins returns the origins allowed for CORS and websocket upgrades.
func (c Config) Origins() []string {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	if c.ClientURL != "" {
		origins = append(origins, c.ClientURL)
	}
	for _, origin := range c.AllowedOrigins {
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
