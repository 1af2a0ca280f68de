package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"recon-engine/internal/model"
)

type sqlserverDriver struct{}

func (d *sqlserverDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open("sqlserver", dsn)
}

func (d *sqlserverDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DSN: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "sqlserver" && scheme != "mssql" {
		return fmt.Errorf("invalid scheme %q, expected sqlserver", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in DSN")
	}
	return nil
}

func (d *sqlserverDriver) DefaultPort() int {
	return 1433
}

func (d *sqlserverDriver) BuildDSN(cfg *model.EndpointConfig) string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}

	params := url.Values{}
	params.Set("database", cfg.Database)
	if cfg.SSL {
		params.Set("encrypt", "true")
	}
	if cfg.Timeout > 0 {
		params.Set("dial timeout", fmt.Sprintf("%d", cfg.Timeout))
	}
	u.RawQuery = params.Encode()
	return u.String()
}

func (d *sqlserverDriver) Name() string {
	return "sqlserver"
}
