package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "SQLBACKUP"

type Config struct {
	Database      ConnectionConfig     `mapstructure:"database"`
	Backup        BackupConfig         `mapstructure:"backup"`
	Storage       StorageConfig        `mapstructure:"storage"`
	Retention     RetentionConfig      `mapstructure:"retention"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
}

// ConnectionConfig holds the parameters needed to reach the source database.
// It is never mutated after loading.
type ConnectionConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Charset  string `mapstructure:"charset"`
}

type BackupConfig struct {
	// Path is the destination directory for dump artifacts.
	Path     string `mapstructure:"path"`
	Archive  string `mapstructure:"archive"`
	Filename string `mapstructure:"filename"`
	// Schedule is a five-field cron expression used by the daemon command.
	Schedule string `mapstructure:"schedule"`

	RowsPerStatement   int  `mapstructure:"rows_per_statement"`
	SingleTransaction  bool `mapstructure:"single_transaction"`
	NoBackslashEscapes bool `mapstructure:"no_backslash_escapes"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RetentionConfig struct {
	KeepDaily   int `mapstructure:"keep_daily"`
	KeepWeekly  int `mapstructure:"keep_weekly"`
	KeepMonthly int `mapstructure:"keep_monthly"`
}

type NotificationConfig struct {
	Type    string            `mapstructure:"type"`
	On      []string          `mapstructure:"on"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("backup.path", os.TempDir())
	v.SetDefault("backup.archive", "none")
	v.SetDefault("backup.filename", "")
	v.SetDefault("backup.schedule", "")
	v.SetDefault("backup.rows_per_statement", 1)
	v.SetDefault("backup.single_transaction", false)
	v.SetDefault("backup.no_backslash_escapes", false)
	v.SetDefault("storage.type", "none")
}

// LoadConfig reads the YAML file at path, applies defaults and SQLBACKUP_*
// environment overrides, then expands ${VAR} references in string fields.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are plain scalars; Unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func ModifyConfig(cfg *Config) {
	db := &cfg.Database
	db.Host = os.ExpandEnv(db.Host)
	db.Database = os.ExpandEnv(db.Database)
	db.User = os.ExpandEnv(db.User)
	db.Password = os.ExpandEnv(db.Password)
	db.Charset = os.ExpandEnv(db.Charset)

	cfg.Backup.Path = os.ExpandEnv(cfg.Backup.Path)
	cfg.Backup.Archive = strings.ToLower(strings.TrimSpace(os.ExpandEnv(cfg.Backup.Archive)))
	cfg.Backup.Filename = os.ExpandEnv(cfg.Backup.Filename)

	st := &cfg.Storage
	st.Type = strings.ToLower(strings.TrimSpace(os.ExpandEnv(st.Type)))
	st.Local.Path = os.ExpandEnv(st.Local.Path)
	st.S3.Bucket = os.ExpandEnv(st.S3.Bucket)
	st.S3.Region = os.ExpandEnv(st.S3.Region)
	st.S3.Prefix = os.ExpandEnv(st.S3.Prefix)
	st.S3.Endpoint = os.ExpandEnv(st.S3.Endpoint)
	st.S3.AccessKey = os.ExpandEnv(st.S3.AccessKey)
	st.S3.SecretKey = os.ExpandEnv(st.S3.SecretKey)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		for j := range nt.On {
			nt.On[j] = os.ExpandEnv(nt.On[j])
		}
		nt.URL = os.ExpandEnv(nt.URL)
		for k, v := range nt.Headers {
			nt.Headers[k] = os.ExpandEnv(v)
		}
	}
}
