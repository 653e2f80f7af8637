package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort         string        `env:"HTTP_PORT" envDefault:"5000"`
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	AccessSecret     string        `env:"JWT_SECRET,required"`
	RefreshSecret    string        `env:"REFRESH_SECRET,required"`
	AccessTTL        time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTTL       time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	VerifyBaseURL    string        `env:"VERIFY_BASE_URL" envDefault:"https://www.dsapjomat.com/verify-email"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"https://www.dsapjomat.com"`
	SMTPHost         string        `env:"SMTP_HOST"`
	SMTPPort         int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string        `env:"SMTP_USER"`
	SMTPPass         string        `env:"SMTP_PASS"`
	SMTPFrom         string        `env:"SMTP_FROM"`
	SMTPFromName     string        `env:"SMTP_FROM_NAME"`
	SMTPUseTLS       bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	ResendRateWindow time.Duration `env:"RESEND_RATE_WINDOW" envDefault:"10m"`
	ResendRateMax    int           `env:"RESEND_RATE_MAX" envDefault:"3"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
