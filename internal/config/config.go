package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBHost     string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/path/to.sock)
	DBName     string `env:"DB_NAME,required"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// TypingTTLSeconds bounds how long a typing indicator survives without
	// an explicit stop from the client.
	TypingTTLSeconds int `env:"TYPING_TTL_SECONDS" envDefault:"6"`
	// WSSendBuffer is the per-connection outbound queue; a client that
	// falls this far behind is dropped.
	WSSendBuffer int `env:"WS_SEND_BUFFER" envDefault:"64"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
