package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Identity IdentityConfig `mapstructure:"identity"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	KPI      KPIConfig      `mapstructure:"kpi"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds document store settings. URI wins over the Atlas
// username/password/cluster triple when both are present.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Cluster  string `mapstructure:"cluster"`
	AppName  string `mapstructure:"app_name"`
	Name     string `mapstructure:"name"`
}

type IdentityConfig struct {
	ProjectID          string        `mapstructure:"project_id"`
	Credentials        string        `mapstructure:"credentials"`
	KeysURL            string        `mapstructure:"keys_url"`
	IssuerPrefix       string        `mapstructure:"issuer_prefix"`
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	ClockSkew          time.Duration `mapstructure:"clock_skew"`
	ListUsersLimit     int           `mapstructure:"list_users_limit"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type KPIConfig struct {
	AllowUnassignedSubmissions bool `mapstructure:"allow_unassigned_submissions"`
	SeedMasterKPIs             bool `mapstructure:"seed_master_kpis"`
}

// Issuer returns the token issuer expected for the configured project.
func (c IdentityConfig) Issuer() string {
	return c.IssuerPrefix + c.ProjectID
}

// MongoURI builds the connection string, falling back to the Atlas SRV form.
func (c DatabaseConfig) MongoURI() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority&appName=%s",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password), c.Cluster, c.AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.name", "kpi_tracker")

	v.SetDefault("identity.keys_url", "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com")
	v.SetDefault("identity.issuer_prefix", "https://securetoken.google.com/")
	v.SetDefault("identity.min_refresh_interval", time.Minute)
	v.SetDefault("identity.clock_skew", 5*time.Minute)
	v.SetDefault("identity.list_users_limit", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)

	v.SetDefault("kpi.allow_unassigned_submissions", true)
	v.SetDefault("kpi.seed_master_kpis", true)
}

// Environment names used by the existing deployment.
var envBindings = map[string]string{
	"server.port":          "PORT",
	"database.uri":         "MONGO_URI",
	"database.username":    "MONGO_USERNAME",
	"database.password":    "MONGO_PASSWORD",
	"database.cluster":     "MONGO_CLUSTER",
	"database.app_name":    "MONGO_APP_NAME",
	"identity.project_id":  "FIREBASE_PROJECT_ID",
	"identity.credentials": "FIREBASE_ADMIN_SDK_CONFIG",
}

// Loader reads configuration and keeps the underlying viper instance for reload hooks.
type Loader struct {
	v *viper.Viper
}

// NewLoader loads an optional .env file from dir, then configures viper to read
// dir/config/config.yaml and KPI_ prefixed environment variables.
func NewLoader(dir string) *Loader {
	// Missing .env is fine outside local development.
	_ = godotenv.Load(dir + "/.env")

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir + "/config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("KPI") // e.g. KPI_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, "KPI_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	return &Loader{v: v}
}

// Load reads the config file if present and decodes and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OnChange watches the config file and calls fn with the re-read configuration.
// Invalid reloads are reported through onError and otherwise ignored.
func (l *Loader) OnChange(fn func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := l.v.Unmarshal(&cfg); err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		if err := cfg.Validate(); err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		fn(&cfg)
	})
	l.v.WatchConfig()
}

func (c *Config) Validate() error {
	var missing []string
	if c.Identity.ProjectID == "" {
		missing = append(missing, "identity.project_id (FIREBASE_PROJECT_ID)")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Database.URI == "" && (c.Database.Username == "" || c.Database.Password == "" || c.Database.Cluster == "") {
			missing = append(missing, "database.uri (MONGO_URI) or MONGO_USERNAME/MONGO_PASSWORD/MONGO_CLUSTER")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Identity.ListUsersLimit <= 0 || c.Identity.ListUsersLimit > 1000 {
		return fmt.Errorf("identity.list_users_limit must be between 1 and 1000, got %d", c.Identity.ListUsersLimit)
	}
	return nil
}
