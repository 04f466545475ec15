package config

import (
	"flag"
	"os"
	"time"
)

// Config содержит конфигурацию сервера.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	JWTSecret       string
	TokenExpiration time.Duration
}

// Load загружает конфигурацию сервера из флагов командной строки и
// переменных окружения. Приоритет: переменные окружения > флаги > значения
// по умолчанию.
func Load() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "адрес и порт запуска сервиса")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL")
	flag.DurationVar(&cfg.TokenExpiration, "t", 24*time.Hour, "время жизни токена")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		cfg.RunAddress = envRunAddr
	}
	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}
	if envExp := os.Getenv("TOKEN_EXPIRATION"); envExp != "" {
		if d, err := time.ParseDuration(envExp); err == nil {
			cfg.TokenExpiration = d
		}
	}

	// JWT секрет
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-secret-change-in-production"
	}

	return cfg
}

// AgentConfig содержит конфигурацию агента синхронизации.
type AgentConfig struct {
	// ServerAddress - базовый URL сервера проведения заказов.
	ServerAddress string
	// QueuePath - путь к sqlite-файлу локальной очереди.
	QueuePath string
	// Login и Password - учётные данные родителя для получения токена.
	Login    string
	Password string
	// PollInterval - период фоновых проходов по очереди.
	PollInterval time.Duration
	// FailedCap - ёмкость буфера неуспешных заказов.
	FailedCap int
}

// LoadAgent загружает конфигурацию агента. Использует собственный FlagSet,
// чтобы не конфликтовать с флагами сервера в тестах.
func LoadAgent(args []string) *AgentConfig {
	cfg := &AgentConfig{}

	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	fs.StringVar(&cfg.ServerAddress, "s", "http://localhost:8080", "адрес сервера проведения заказов")
	fs.StringVar(&cfg.QueuePath, "q", "canteen-queue.db", "путь к файлу локальной очереди")
	fs.StringVar(&cfg.Login, "l", "", "логин родителя")
	fs.DurationVar(&cfg.PollInterval, "i", 30*time.Second, "период проходов по очереди")
	fs.IntVar(&cfg.FailedCap, "f", 50, "ёмкость буфера неуспешных заказов")
	fs.Parse(args)

	if env := os.Getenv("SERVER_ADDRESS"); env != "" {
		cfg.ServerAddress = env
	}
	if env := os.Getenv("QUEUE_PATH"); env != "" {
		cfg.QueuePath = env
	}
	if env := os.Getenv("AGENT_LOGIN"); env != "" {
		cfg.Login = env
	}
	// Пароль принимается только из окружения
	cfg.Password = os.Getenv("AGENT_PASSWORD")

	return cfg
}
