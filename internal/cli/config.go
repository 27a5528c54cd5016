package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lunagic/hermes/hermes"
	"github.com/lunagic/hermes/hermesservices/cache"
	"github.com/lunagic/hermes/hermesservices/database"
	"github.com/lunagic/hermes/hermesservices/querylog"
	"github.com/lunagic/hermes/hermesservices/storage"
)

type AppConfig struct {
	// App
	AppStatementCacheSize    int    `env:"HERMES_STATEMENT_CACHE_SIZE"`
	AppResultCacheTTLSeconds int    `env:"HERMES_RESULT_CACHE_TTL_SECONDS"`
	AppQueryLogTopic         string `env:"HERMES_QUERY_LOG_TOPIC"`
	// App Drivers
	AppDriverDatabase string `env:"HERMES_DRIVER_DATABASE"`
	AppDriverCache    string `env:"HERMES_DRIVER_CACHE"`
	AppDriverQueryLog string `env:"HERMES_DRIVER_QUERY_LOG"`
	AppDriverStorage  string `env:"HERMES_DRIVER_STORAGE"`
	// Services
	AmazonS3AccessKeyID     string `env:"AMAZON_S3_ACCESS_KEY_ID"`
	AmazonS3AccessKeySecret string `env:"AMAZON_S3_ACCESS_KEY_SECRET"`
	AmazonS3Bucket          string `env:"AMAZON_S3_BUCKET"`
	AmazonS3Endpoint        string `env:"AMAZON_S3_ENDPOINT"`
	AmazonS3Region          string `env:"AMAZON_S3_REGION"`
	LocalStoragePath        string `env:"LOCAL_STORAGE_PATH"`
	MySQLHost               string `env:"MYSQL_HOST"`
	MySQLName               string `env:"MYSQL_NAME"`
	MySQLPass               string `env:"MYSQL_PASS"`
	MySQLPort               int    `env:"MYSQL_PORT"`
	MySQLUser               string `env:"MYSQL_USER"`
	PostgresHost            string `env:"POSTGRES_HOST"`
	PostgresName            string `env:"POSTGRES_NAME"`
	PostgresPass            string `env:"POSTGRES_PASS"`
	PostgresPort            int    `env:"POSTGRES_PORT"`
	PostgresUser            string `env:"POSTGRES_USER"`
	RabbitMQHost            string `env:"RABBITMQ_HOST"`
	RabbitMQPass            string `env:"RABBITMQ_PASS"`
	RabbitMQPort            int    `env:"RABBITMQ_PORT"`
	RabbitMQUser            string `env:"RABBITMQ_USER"`
	RedisHost               string `env:"REDIS_HOST"`
	RedisNumber             int    `env:"REDIS_NUMBER"`
	RedisPass               string `env:"REDIS_PASS"`
	RedisPort               int    `env:"REDIS_PORT"`
	RedisUser               string `env:"REDIS_USER"`
	SQLitePath              string `env:"SQLITE_PATH"`
}

func NewConfig() AppConfig {
	return AppConfig{
		AppDriverDatabase:        "sqlite",
		AppDriverStorage:         "local",
		AppQueryLogTopic:         "hermes-query-log",
		AppResultCacheTTLSeconds: 60,
		AppStatementCacheSize:    64,
		LocalStoragePath:         "exports",
		MySQLHost:                "127.0.0.1",
		MySQLPort:                3306,
		PostgresHost:             "127.0.0.1",
		PostgresPort:             5432,
		RabbitMQHost:             "127.0.0.1",
		RabbitMQPort:             5672,
		RedisHost:                "127.0.0.1",
		RedisPort:                6379,
		SQLitePath:               "database.sqlite",
	}
}

// ResultCacheTTL is the result cache lifetime as a duration.
func (config AppConfig) ResultCacheTTL() time.Duration {
	return time.Duration(config.AppResultCacheTTLSeconds) * time.Second
}

// Dialect resolves a dialect by name without connecting to anything.
func (config AppConfig) Dialect(name string) (hermes.Dialect, error) {
	if name == "standard" {
		return hermes.DefaultDialect(), nil
	}

	driver, err := config.databaseDriver(name)
	if err != nil {
		return nil, err
	}

	return driver, nil
}

func (config AppConfig) databaseDriver(name string) (database.Driver, error) {
	switch name {
	case "sqlite":
		return database.NewDriverSQLite(config.SQLitePath), nil
	case "postgres":
		return database.NewDriverPostgres(database.DriverPostgresConfig{
			Host: config.PostgresHost,
			Port: config.PostgresPort,
			User: config.PostgresUser,
			Pass: config.PostgresPass,
			Name: config.PostgresName,
		}), nil
	case "mysql":
		return database.NewDriverMySQL(database.DriverMySQLConfig{
			Host: config.MySQLHost,
			Port: config.MySQLPort,
			User: config.MySQLUser,
			Pass: config.MySQLPass,
			Name: config.MySQLName,
		}), nil
	}

	return nil, fmt.Errorf("invalid database driver: %s", name)
}

func (config AppConfig) Database(configFuncs ...database.ServiceConfigFunc) (*database.Service, error) {
	driver, err := config.databaseDriver(config.AppDriverDatabase)
	if err != nil {
		return nil, err
	}

	return database.New(driver, configFuncs...)
}

// Cache returns nil when no cache driver is configured.
func (config AppConfig) Cache() (cache.Driver, error) {
	switch config.AppDriverCache {
	case "":
		return nil, nil
	case "memory":
		return cache.NewDriverMemory()
	case "redis":
		return cache.NewDriverRedis(cache.DriverRedisConfig{
			Host:   config.RedisHost,
			Number: config.RedisNumber,
			Pass:   config.RedisPass,
			Port:   config.RedisPort,
			User:   config.RedisUser,
		})
	}

	return nil, fmt.Errorf("invalid cache driver: %s", config.AppDriverCache)
}

// QueryLog returns nil when no query log driver is configured.
func (config AppConfig) QueryLog(ctx context.Context) (*querylog.Log, error) {
	var driver querylog.Driver
	var err error

	switch config.AppDriverQueryLog {
	case "":
		return nil, nil
	case "memory":
		driver, err = querylog.NewDriverMemory()
	case "rabbitmq":
		driver, err = querylog.NewDriverRabbitMQ(querylog.DriverRabbitMQConfig{
			Host: config.RabbitMQHost,
			Pass: config.RabbitMQPass,
			Port: config.RabbitMQPort,
			User: config.RabbitMQUser,
		})
	default:
		return nil, fmt.Errorf("invalid query log driver: %s", config.AppDriverQueryLog)
	}

	if err != nil {
		return nil, err
	}

	return querylog.NewLog(ctx, driver, config.AppQueryLogTopic)
}

func (config AppConfig) Storage() (storage.Driver, error) {
	switch config.AppDriverStorage {
	case "local":
		return storage.NewDriverLocal(config.LocalStoragePath)
	case "s3":
		return storage.NewDriverS3(storage.S3Config{
			Endpoint:        config.AmazonS3Endpoint,
			Region:          config.AmazonS3Region,
			Bucket:          config.AmazonS3Bucket,
			AccessKeyID:     config.AmazonS3AccessKeyID,
			AccessKeySecret: config.AmazonS3AccessKeySecret,
		})
	}

	return nil, fmt.Errorf("invalid storage driver: %s", config.AppDriverStorage)
}
