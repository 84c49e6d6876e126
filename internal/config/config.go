// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Политики начисления счётчика связей при принятии запроса.
const (
	AcceptCreditBoth      = "both"
	AcceptCreditRecipient = "recipient"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Payment                 `yaml:"payment"`
	Engine                  `yaml:"engine"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"` // Запросов в секунду на процесс
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Addr        string        `yaml:"addressredis" env:"REDIS_ADDR"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для проверки jwt-токена, выпущенного провайдером идентификации
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// RabbitMQ структура для подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Payment структура для работы с платёжным провайдером
type Payment struct {
	ProviderKeyID     string        `yaml:"key_id" env:"PAYMENT_KEY_ID"`
	ProviderKeySecret string        `yaml:"key_secret" env:"PAYMENT_KEY_SECRET"`
	ProviderAPIURL    string        `yaml:"api_url" env-default:"https://api.razorpay.com/v1"`
	ProviderTimeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// Engine структура с политиками движка связей
type Engine struct {
	PlanDurationMonths int           `yaml:"plan_duration_months" env-default:"3"`
	PlanWindow         time.Duration `yaml:"plan_window" env-default:"2160h"`
	AcceptCreditPolicy string        `yaml:"accept_credit_policy" env-default:"both"`
	ReminderInterval   time.Duration `yaml:"reminder_interval" env-default:"12h"`
}

// SMTP структура для отправки писем-уведомлений
type SMTP struct {
	SMTPHost     string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string `yaml:"user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"password" env:"SMTP_PASSWORD"`
}

// Load читает конфиг из файла и переменных окружения и проверяет политики.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.AcceptCreditPolicy {
	case AcceptCreditBoth, AcceptCreditRecipient:
	default:
		return fmt.Errorf("unknown accept_credit_policy %q", c.AcceptCreditPolicy)
	}
	if c.PlanDurationMonths <= 0 {
		return fmt.Errorf("plan_duration_months must be positive")
	}
	if c.PlanWindow <= 0 {
		return fmt.Errorf("plan_window must be positive")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"Payment:\n"+
			"  KeyID: %s\n"+
			"  APIURL: %s\n"+
			"Engine:\n"+
			"  PlanDurationMonths: %d\n"+
			"  PlanWindow: %s\n"+
			"  AcceptCreditPolicy: %s\n",
		c.Env,
		c.MigrationsPath,
		c.Addr,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RabbitMQMaxRetries,
		c.ProviderKeyID,
		c.ProviderAPIURL,
		c.PlanDurationMonths,
		c.PlanWindow,
		c.AcceptCreditPolicy,
	)
}
