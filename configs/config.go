package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Env    string `mapstructure:"env"`
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	JWT struct {
		SECRET string        `mapstructure:"secret"`
		TTL    time.Duration `mapstructure:"ttl"`
	} `mapstructure:"jwt"`
	Admin struct {
		Password   string `mapstructure:"password"`
		LoginPhone string `mapstructure:"login_phone"`
		LoginCode  string `mapstructure:"login_code"`
	} `mapstructure:"admin"`
	OTP struct {
		TTL         time.Duration `mapstructure:"ttl"`
		ExposeCodes bool          `mapstructure:"expose_codes"`
	} `mapstructure:"otp"`
	Payment struct {
		UpiID        string        `mapstructure:"upi_id"`
		PayeeName    string        `mapstructure:"payee_name"`
		VerifyAfter  time.Duration `mapstructure:"verify_after"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"payment"`
	Accrual struct {
		Interval time.Duration `mapstructure:"interval"`
		Timezone string        `mapstructure:"timezone"`
	} `mapstructure:"accrual"`
	Export struct {
		Bucket          string        `mapstructure:"bucket"`
		Endpoint        string        `mapstructure:"endpoint"`
		Region          string        `mapstructure:"region"`
		AccessKeyID     string        `mapstructure:"access_key_id"`
		SecretAccessKey string        `mapstructure:"secret_access_key"`
		PresignTTL      time.Duration `mapstructure:"presign_ttl"`
	} `mapstructure:"export"`
	Seed struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "investment_data.db")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.login_phone", "0000000000")
	v.SetDefault("admin.login_code", "000000")
	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.expose_codes", false)
	v.SetDefault("payment.upi_id", "your-upi-id@provider")
	v.SetDefault("payment.payee_name", "InvestmentApp")
	v.SetDefault("payment.verify_after", 120*time.Second)
	v.SetDefault("payment.poll_interval", 3*time.Second)
	v.SetDefault("payment.timeout", 10*time.Minute)
	v.SetDefault("accrual.interval", time.Hour)
	v.SetDefault("accrual.timezone", "Asia/Kolkata")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.region", "auto")
	v.SetDefault("export.access_key_id", "")
	v.SetDefault("export.secret_access_key", "")
	v.SetDefault("export.presign_ttl", 15*time.Minute)
	v.SetDefault("seed.enabled", false)
}

// LoadConfig reads config.yaml from dir, then lets environment variables
// (DB_DSN, JWT_SECRET, ADMIN_PASSWORD, ...) override any key. A missing
// config file is not an error; defaults and env are enough to boot.
func LoadConfig(dir string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug("no .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var fileLookupError viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &fileLookupError) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Log.Warn("config file not found, using defaults and environment", zap.String("dir", dir))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.SECRET == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.Admin.Password == "" {
		return errors.New("admin.password must be set")
	}
	if c.Payment.PollInterval <= 0 || c.Payment.Timeout <= c.Payment.VerifyAfter {
		return errors.New("payment.timeout must exceed payment.verify_after and poll_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Accrual.Timezone); err != nil {
		return fmt.Errorf("accrual.timezone: %w", err)
	}
	return nil
}

// Location is the calendar used to decide what "today" means for accrual.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Accrual.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
