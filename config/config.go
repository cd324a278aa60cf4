package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"port"`

	DBDriver    string `mapstructure:"db_driver"`
	DatabaseURL string `mapstructure:"database_url"`
	DBHost      string `mapstructure:"db_host"`
	DBUser      string `mapstructure:"db_user"`
	DBPassword  string `mapstructure:"db_password"`
	DBName      string `mapstructure:"db_name"`
	DBPort      string `mapstructure:"db_port"`
	SQLitePath  string `mapstructure:"sqlite_path"`

	RedisHost     string        `mapstructure:"redis_host"`
	RedisPassword string        `mapstructure:"redis_password"`
	ListCacheTTL  time.Duration `mapstructure:"list_cache_ttl"`

	KafkaBroker      string `mapstructure:"kafka_broker"`
	KafkaTopic       string `mapstructure:"kafka_topic"`
	KafkaGroupID     string `mapstructure:"kafka_group_id"`
	ElasticsearchURL string `mapstructure:"elasticsearch_url"`
	ElasticIndex     string `mapstructure:"elastic_index"`

	SentryDSN  string `mapstructure:"sentry_dsn"`
	AppEnv     string `mapstructure:"app_env"`
	AppVersion string `mapstructure:"app_version"`

	CORSOrigins []string `mapstructure:"cors_origins"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var keys = []string{
	"port", "db_driver", "database_url", "db_host", "db_user", "db_password",
	"db_name", "db_port", "sqlite_path", "redis_host", "redis_password",
	"list_cache_ttl", "kafka_broker", "kafka_topic", "kafka_group_id",
	"elasticsearch_url", "elastic_index", "sentry_dsn", "app_env",
	"app_version", "cors_origins",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("db_driver", DriverSQLite)
	v.SetDefault("db_port", "5432")
	v.SetDefault("sqlite_path", "data/medicos.db")
	v.SetDefault("list_cache_ttl", 5*time.Minute)
	v.SetDefault("kafka_topic", "medico_events")
	v.SetDefault("kafka_group_id", "medicos-group")
	v.SetDefault("elastic_index", "medicos")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_version", "dev")
	v.SetDefault("cors_origins", []string{"*"})
}

// Load reads .env (if present), an optional config file and the process
// environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded, using environment variables directly")
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBHost == "" {
			return fmt.Errorf("DATABASE_URL or DB_HOST is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// PostgresDSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}
