package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"prod"`
	StorageType string `yaml:"storage" env:"STORAGE" env-default:"mysql"`
	HTTPServer  `yaml:"http_server"`
	DBUser      string `yaml:"db_user" env:"DB_USER"`
	DBPassword  string `yaml:"db_password" env:"DB_PASSWORD"`
	DBHost      string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort      int    `yaml:"db_port" env:"DB_PORT" env-default:"3306"`
	DBName      string `yaml:"db_name" env:"DB_NAME"`
	ParseTime   bool   `yaml:"parse_time" env-default:"true"`

	AdminLogin  string   `yaml:"admin_login" env:"ADMIN_LOGIN"`
	AdminPass   string   `yaml:"admin_pass" env:"ADMIN_PASS"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:5173"`

	Planning   Planning   `yaml:"planning"`
	Adjustment Adjustment `yaml:"adjustment"`
	Refresh    Refresh    `yaml:"refresh"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4001"`
	Timeout     time.Duration `yaml:"timeout"  env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout"  env-default:"60s"`
}

type Planning struct {
	DailyCapacityMinutes int  `yaml:"daily_capacity_minutes" env:"DAILY_CAPACITY_MINUTES" env-default:"480"`
	SkipWeekends         bool `yaml:"skip_weekends" env:"SKIP_WEEKENDS" env-default:"false"`
	SplitHorizonDays     int  `yaml:"split_horizon_days" env-default:"60"`
}

type Adjustment struct {
	AutoDrawDelay    time.Duration `yaml:"auto_draw_delay" env:"AUTO_DRAW_DELAY" env-default:"3s"`
	StationID        string        `yaml:"station_id" env:"STATION_ID" env-default:"STACJA-DOZ-1"`
	ContainerPattern string        `yaml:"container_pattern" env-default:"^[0-9]{2,3}$"`
}

type Refresh struct {
	Schedule string `yaml:"schedule" env:"REFRESH_SCHEDULE" env-default:"0 */15 * * * *"`
}

func MustConfig() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// без файла - только переменные окружения и значения по умолчанию
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
