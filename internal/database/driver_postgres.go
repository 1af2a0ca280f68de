package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"

	"recon-engine/internal/model"
)

type postgresDriver struct{}

func (d *postgresDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

func (d *postgresDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid scheme %q, expected postgres", u.Scheme)
	}
	return nil
}

func (d *postgresDriver) DefaultPort() int {
	return 5432
}

func (d *postgresDriver) BuildDSN(cfg *model.EndpointConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}

	params := []string{}
	if cfg.SSL {
		params = append(params, "sslmode=require")
	} else {
		params = append(params, "sslmode=disable")
	}
	if cfg.Timezone != "" {
		params = append(params, "TimeZone="+url.QueryEscape(cfg.Timezone))
	}
	if cfg.Timeout > 0 {
		params = append(params, fmt.Sprintf("connect_timeout=%d", cfg.Timeout))
	}
	u.RawQuery = strings.Join(params, "&")
	return u.String()
}

func (d *postgresDriver) Name() string {
	return "postgres"
}
