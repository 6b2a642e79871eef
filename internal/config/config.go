package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret            string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"accounts-api"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"120"`
	TwoFactorTTLMinutes  int    `env:"TWO_FACTOR_TTL_MINUTES" envDefault:"10"`
	BcryptCost           int    `env:"BCRYPT_COST" envDefault:"10"`
	ReferralCodeLength   int    `env:"REFERRAL_CODE_LENGTH" envDefault:"8"`
	ReferralMaxAttempts  int    `env:"REFERRAL_MAX_ATTEMPTS" envDefault:"1000"`
	OTPRateWindowMinutes int    `env:"OTP_RATE_WINDOW_MINUTES" envDefault:"10"`
	OTPRateMax           int    `env:"OTP_RATE_MAX" envDefault:"3"`
	OTPVerifyMaxFailures int    `env:"OTP_VERIFY_MAX_FAILURES" envDefault:"5"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"accounts"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) TwoFactorTTL() time.Duration {
	return time.Duration(c.TwoFactorTTLMinutes) * time.Minute
}

func (c *Config) OTPRateWindow() time.Duration {
	return time.Duration(c.OTPRateWindowMinutes) * time.Minute
}
