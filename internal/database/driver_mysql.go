package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"recon-engine/internal/model"
)

// mysqlDriver serves both MySQL and MariaDB endpoints.
type mysqlDriver struct{}

func (d *mysqlDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

func (d *mysqlDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if !strings.Contains(dsn, "@") {
		return fmt.Errorf("mysql DSN must contain credentials")
	}
	return nil
}

func (d *mysqlDriver) DefaultPort() int {
	return 3306
}

func (d *mysqlDriver) BuildDSN(cfg *model.EndpointConfig) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	params := []string{"parseTime=true"}
	if cfg.SSL {
		params = append(params, "tls=true")
	}
	if cfg.Timezone != "" {
		params = append(params, "loc="+cfg.Timezone)
	}
	if cfg.Timeout > 0 {
		params = append(params, fmt.Sprintf("timeout=%ds", cfg.Timeout))
	}
	return dsn + "?" + strings.Join(params, "&")
}

func (d *mysqlDriver) Name() string {
	return "mysql"
}
