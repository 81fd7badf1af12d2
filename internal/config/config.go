package config

import "github.com/kelseyhightower/envconfig"

type HTTP struct {
	Port int `envconfig:"PORT" default:"3000"`
}

type Database struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
	Name     string `envconfig:"NAME" required:"true"`
	MaxConns int    `envconfig:"MAX_CONNS" default:"10"`
}

type RabbitMQ struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5672"`
	User     string `envconfig:"USER" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
	VHost    string `envconfig:"VHOST" default:"/"`
}

type Redis struct {
	Addr           string `envconfig:"ADDR" default:"localhost:6379"`
	Password       string `envconfig:"PASSWORD"`
	DB             int    `envconfig:"DB" default:"0"`
	IdemTTLSeconds int    `envconfig:"IDEM_TTL_SECONDS" default:"86400"`
}

// Floor carries the coordination policy knobs.
type Floor struct {
	AssignMaxAttempts   int `envconfig:"ASSIGN_MAX_ATTEMPTS" default:"3"`
	GraceMinutes        int `envconfig:"GRACE_MINUTES" default:"15"`
	DefaultDurationMins int `envconfig:"DEFAULT_DURATION_MINUTES" default:"90"`
}

type App struct {
	LogLevel string   `envconfig:"LOG_LEVEL" default:"info"`
	HTTP     HTTP     `envconfig:"HTTP"`
	Database Database `envconfig:"DB"`
	Rabbit   RabbitMQ `envconfig:"RABBIT"`
	Redis    Redis    `envconfig:"REDIS"`
	Floor    Floor    `envconfig:"FLOOR"`
}

// Load reads the configuration from POS_-prefixed environment variables.
func Load() (App, error) {
	var a App
	if err := envconfig.Process("pos", &a); err != nil {
		return App{}, err
	}
	return a, nil
}
