package config

import (
	"errors"
	"flag"
	"fmt"
	"maps"
	"ops-monitor/internal/opsmonitor"
	"ops-monitor/internal/opsmonitor/backend"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/data/database"
	"ops-monitor/internal/opsmonitor/detector"
	"ops-monitor/internal/opsmonitor/notifier"
	"ops-monitor/internal/opsmonitor/ordersmonitor"
	"ops-monitor/internal/opsmonitor/service"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFileFlag              = "c"
	configFileEnv               = "CONFIG_FILE"
	serverAddressFlag           = "a"
	serverAddressEnv            = "RUN_ADDRESS"
	serverAddressDefault        = "localhost:8080"
	backendAddressFlag          = "b"
	backendAddressEnv           = "BACKEND_ADDRESS"
	backendAddressDefault       = "http://localhost:5000"
	backendTokenFlag            = "t"
	backendTokenEnv             = "BACKEND_TOKEN"
	dbConnectionStringFlag      = "d"
	dbConnectionStringEnv       = "DATABASE_URI"
	jwtSecretFlag               = "s"
	jwtSecretEnv                = "JWT_SECRET"
	jwtSecretDefault            = "secret"
	logLevelFlag                = "l"
	logLevelEnv                 = "LOG_LEVEL"
	logLevelDefault             = "info"
	timezoneFlag                = "tz"
	timezoneEnv                 = "TIMEZONE"
	timezoneDefault             = "Local"
	refreshPeriodFlag           = "i"
	refreshPeriodEnv            = "REFRESH_PERIOD"
	refreshPeriodDefault        = time.Minute
	notificationsEnabledFlag    = "n"
	notificationsEnabledEnv     = "NOTIFICATIONS_ENABLED"
	notificationsEnabledDefault = true
	redisURLFlag                = "redis"
	redisURLEnv                 = "REDIS_URL"
	amqpURLFlag                 = "amqp"
	amqpURLEnv                  = "AMQP_URL"
	allowedOriginsFlag          = "origins"
	allowedOriginsEnv           = "ALLOWED_ORIGINS"
)

const (
	fastTickPeriod        = time.Second
	overdueAfter          = 45 * time.Minute
	workersCount          = 2
	recentEventsCapacity  = 200
	backendRequestTimeout = 15 * time.Second
	backendRequestsPerSec = 2
	jwtAlgorithm          = "HS256"
	jwtIssuer             = "opsmonitor"
	jwtExpirationTime     = time.Hour
	shutdownTimeout       = 5 * time.Second
	redisChannelDefault   = "opsmonitor.notifications"
	amqpExchangeDefault   = "opsmonitor"
	amqpRoutingKeyDefault = "notifications"
	notificationBurst     = 10
)

var errInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server          opsmonitor.Config
	Backend         backend.Config
	JWT             JWTConfig
	DB              database.Config
	Monitor         ordersmonitor.Config
	SLALimits       map[data.Status]time.Duration
	Notifications   NotificationsConfig
	Reconciliation  service.ReconciliationConfig
	LogLevel        string
	Timezone        string
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Algorithm      string
	Secret         string
	Issuer         string
	ExpirationTime time.Duration
}

type NotificationsConfig struct {
	Dispatcher     notifier.Config
	AllowedOrigins []string
	RedisURL       string
	RedisChannel   string
	AMQP           notifier.AMQPConfig
	Enabled        bool
}

// fileConfig is the optional YAML file. Zero values leave the defaults alone.
type fileConfig struct {
	ServerAddress  string                   `yaml:"server_address"`
	BackendAddress string                   `yaml:"backend_address"`
	BackendToken   string                   `yaml:"backend_token"`
	DatabaseURI    string                   `yaml:"database_uri"`
	JWTSecret      string                   `yaml:"jwt_secret"`
	LogLevel       string                   `yaml:"log_level"`
	Timezone       string                   `yaml:"timezone"`
	RefreshPeriod  time.Duration            `yaml:"refresh_period"`
	SLALimits      map[string]time.Duration `yaml:"sla_limits"`
	Notifications  struct {
		Enabled        *bool    `yaml:"enabled"`
		RateLimit      float64  `yaml:"rate_limit"`
		Burst          int      `yaml:"burst"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RedisURL       string   `yaml:"redis_url"`
		RedisChannel   string   `yaml:"redis_channel"`
		AMQPURL        string   `yaml:"amqp_url"`
		AMQPExchange   string   `yaml:"amqp_exchange"`
		AMQPRoutingKey string   `yaml:"amqp_routing_key"`
	} `yaml:"notifications"`
	Legacy struct {
		TaxField  string `yaml:"tax_field"`
		RateField string `yaml:"rate_field"`
	} `yaml:"legacy"`
}

// Load builds the configuration from defaults, then the YAML file, then
// command line flags, then environment variables, each overriding the previous.
func Load() (*Config, error) {
	return load(os.Args[0], os.Args[1:], os.LookupEnv)
}

func load(name string, args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configFile := fs.String(configFileFlag, "", "Path to a YAML config file")
	fs.String(serverAddressFlag, serverAddressDefault, "Server address host:port")
	fs.String(backendAddressFlag, backendAddressDefault, "Dashboard backend base URL")
	fs.String(backendTokenFlag, "", "Static bearer token for the backend")
	fs.String(dbConnectionStringFlag, "", "PostgreSQL connection string of the audit journal")
	fs.String(jwtSecretFlag, jwtSecretDefault, "HMAC secret for API and backend tokens")
	fs.String(logLevelFlag, logLevelDefault, "Log level")
	fs.String(timezoneFlag, timezoneDefault, "IANA time zone of the stores")
	fs.Duration(refreshPeriodFlag, refreshPeriodDefault, "Order list refresh period")
	fs.Bool(notificationsEnabledFlag, notificationsEnabledDefault, "Start with notifications enabled")
	fs.String(redisURLFlag, "", "Redis URL for the notification channel")
	fs.String(amqpURLFlag, "", "AMQP URL for the notification exchange")
	fs.String(allowedOriginsFlag, "", "Comma separated origins allowed to open the notification stream")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg := defaults()

	if valStr, ok := lookupEnv(configFileEnv); ok {
		*configFile = valStr
	}
	if *configFile != "" {
		if err := cfg.applyFile(*configFile); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err == nil {
			err = cfg.apply(f.Name, f.Value.String())
		}
	})
	if err != nil {
		return nil, err
	}

	for flagName, envName := range envNames {
		if valStr, ok := lookupEnv(envName); ok {
			if err := cfg.apply(flagName, valStr); err != nil {
				return nil, err
			}
		}
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envNames = map[string]string{
	serverAddressFlag:        serverAddressEnv,
	backendAddressFlag:       backendAddressEnv,
	backendTokenFlag:         backendTokenEnv,
	dbConnectionStringFlag:   dbConnectionStringEnv,
	jwtSecretFlag:            jwtSecretEnv,
	logLevelFlag:             logLevelEnv,
	timezoneFlag:             timezoneEnv,
	refreshPeriodFlag:        refreshPeriodEnv,
	notificationsEnabledFlag: notificationsEnabledEnv,
	redisURLFlag:             redisURLEnv,
	amqpURLFlag:              amqpURLEnv,
	allowedOriginsFlag:       allowedOriginsEnv,
}

func defaults() *Config {
	return &Config{
		Server: opsmonitor.Config{
			ServerAddress:   serverAddressDefault,
			ShutdownTimeout: shutdownTimeout,
		},
		Backend: backend.Config{
			ServerAddress:     backendAddressDefault,
			RequestTimeout:    backendRequestTimeout,
			RequestsPerSecond: backendRequestsPerSec,
		},
		JWT: JWTConfig{
			Algorithm:      jwtAlgorithm,
			Secret:         jwtSecretDefault,
			Issuer:         jwtIssuer,
			ExpirationTime: jwtExpirationTime,
		},
		DB: database.Config{
			RetryAttemptDelays: []time.Duration{time.Second, 2 * time.Second, 5 * time.Second},
		},
		Monitor: ordersmonitor.Config{
			TickPeriod:           refreshPeriodDefault,
			FastTickPeriod:       fastTickPeriod,
			WorkersCount:         workersCount,
			TasksBufferLength:    workersCount,
			RecentEventsCapacity: recentEventsCapacity,
			OverdueAfter:         overdueAfter,
		},
		SLALimits: maps.Clone(detector.DefaultLimits),
		Notifications: NotificationsConfig{
			Enabled: notificationsEnabledDefault,
			Dispatcher: notifier.Config{
				Burst: notificationBurst,
			},
			RedisChannel: redisChannelDefault,
			AMQP: notifier.AMQPConfig{
				Exchange:   amqpExchangeDefault,
				RoutingKey: amqpRoutingKeyDefault,
			},
		},
		Reconciliation: service.ReconciliationConfig{
			TaxField:  service.DefaultTaxField,
			RateField: service.DefaultRateField,
		},
		LogLevel:        logLevelDefault,
		Timezone:        timezoneDefault,
		ShutdownTimeout: shutdownTimeout,
	}
}

func (cfg *Config) apply(flagName, value string) error {
	switch flagName {
	case serverAddressFlag:
		cfg.Server.ServerAddress = value
	case backendAddressFlag:
		cfg.Backend.ServerAddress = value
	case backendTokenFlag:
		cfg.Backend.StaticToken = value
	case dbConnectionStringFlag:
		cfg.DB.ConnectionString = value
	case jwtSecretFlag:
		cfg.JWT.Secret = value
	case logLevelFlag:
		cfg.LogLevel = value
	case timezoneFlag:
		cfg.Timezone = value
	case refreshPeriodFlag:
		period, err := time.ParseDuration(value)
		if err != nil || period <= 0 {
			return fmt.Errorf("%w: refresh period %q", errInvalidConfig, value)
		}
		cfg.Monitor.TickPeriod = period
	case notificationsEnabledFlag:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: notifications enabled %q", errInvalidConfig, value)
		}
		cfg.Notifications.Enabled = enabled
	case redisURLFlag:
		cfg.Notifications.RedisURL = value
	case amqpURLFlag:
		cfg.Notifications.AMQP.URL = value
	case allowedOriginsFlag:
		cfg.Notifications.AllowedOrigins = splitList(value)
	}
	return nil
}

func (cfg *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.Server.ServerAddress, file.ServerAddress)
	setString(&cfg.Backend.ServerAddress, file.BackendAddress)
	setString(&cfg.Backend.StaticToken, file.BackendToken)
	setString(&cfg.DB.ConnectionString, file.DatabaseURI)
	setString(&cfg.JWT.Secret, file.JWTSecret)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.Timezone, file.Timezone)
	if file.RefreshPeriod < 0 {
		return fmt.Errorf("%w: negative refresh period", errInvalidConfig)
	}
	if file.RefreshPeriod > 0 {
		cfg.Monitor.TickPeriod = file.RefreshPeriod
	}
	for status, limit := range file.SLALimits {
		if limit <= 0 {
			return fmt.Errorf("%w: SLA limit of %q must be positive", errInvalidConfig, status)
		}
		cfg.SLALimits[data.Status(status)] = limit
	}

	notifications := file.Notifications
	if notifications.Enabled != nil {
		cfg.Notifications.Enabled = *notifications.Enabled
	}
	if notifications.RateLimit > 0 {
		cfg.Notifications.Dispatcher.RateLimit = notifications.RateLimit
	}
	if notifications.Burst > 0 {
		cfg.Notifications.Dispatcher.Burst = notifications.Burst
	}
	if len(notifications.AllowedOrigins) > 0 {
		cfg.Notifications.AllowedOrigins = notifications.AllowedOrigins
	}
	setString(&cfg.Notifications.RedisURL, notifications.RedisURL)
	setString(&cfg.Notifications.RedisChannel, notifications.RedisChannel)
	setString(&cfg.Notifications.AMQP.URL, notifications.AMQPURL)
	setString(&cfg.Notifications.AMQP.Exchange, notifications.AMQPExchange)
	setString(&cfg.Notifications.AMQP.RoutingKey, notifications.AMQPRoutingKey)

	setString(&cfg.Reconciliation.TaxField, file.Legacy.TaxField)
	setString(&cfg.Reconciliation.RateField, file.Legacy.RateField)
	return nil
}

// Location resolves the configured time zone used to read created_at.
func (cfg *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %w", errInvalidConfig, cfg.Timezone, err)
	}
	return loc, nil
}

func splitList(value string) []string {
	list := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
