package config

import (
	"fmt"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/archive"
	"github.com/dev-tams/sqlbackup/internal/schedule"
)

// Validate checks the fields every run needs. Connection reachability is not
// checked here; it surfaces when the connection is first opened.
func (c *Config) Validate() error {
	db := c.Database
	if db.Database == "" {
		return fmt.Errorf("database.name is required")
	}
	if db.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", db.Port)
	}
	if db.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Backup.Path == "" {
		return fmt.Errorf("backup.path is required")
	}
	if _, err := archive.ParseFormat(c.Backup.Archive); err != nil {
		return fmt.Errorf("backup.archive=%q is not supported (none, zip, gzip)", c.Backup.Archive)
	}
	if c.Backup.RowsPerStatement < 0 {
		return fmt.Errorf("backup.rows_per_statement must be >= 0")
	}
	if s := strings.TrimSpace(c.Backup.Schedule); s != "" {
		if _, err := schedule.Parse(s); err != nil {
			return fmt.Errorf("backup.schedule=%q: %w", s, err)
		}
	}

	switch c.Storage.Type {
	case "", "none":
	case "local":
		if c.Storage.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required for storage.type=local")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.bucket and storage.s3.region are required for storage.type=s3")
		}
		if (c.Storage.S3.AccessKey == "") != (c.Storage.S3.SecretKey == "") {
			return fmt.Errorf("storage.s3.access_key and storage.s3.secret_key must be set together")
		}
	default:
		return fmt.Errorf("storage.type=%q is not supported (none, local, s3)", c.Storage.Type)
	}

	r := c.Retention
	if r.KeepDaily < 0 || r.KeepWeekly < 0 || r.KeepMonthly < 0 {
		return fmt.Errorf("retention.keep_* values must be >= 0")
	}

	for i, n := range c.Notifications {
		if n.Type == "" {
			return fmt.Errorf("notifications[%d].type is required", i)
		}
	}
	return nil
}
