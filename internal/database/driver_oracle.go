package database

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/sijms/go-ora/v2"

	"recon-engine/internal/model"
)

type oracleDriver struct{}

func (d *oracleDriver) Open(dsn string) (*sql.DB, error) {
	return sql.Open("oracle", dsn)
}

func (d *oracleDriver) ValidateDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "oracle" {
		return fmt.Errorf("invalid scheme %q, expected oracle", u.Scheme)
	}
	return nil
}

func (d *oracleDriver) DefaultPort() int {
	return 1521
}

// BuildDSN renders the go-ora URL form. The Database field holds the
// Oracle service name.
func (d *oracleDriver) BuildDSN(cfg *model.EndpointConfig) string {
	u := url.URL{
		Scheme: "oracle",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSL {
		u.RawQuery = "ssl=true"
	}
	return u.String()
}

func (d *oracleDriver) Name() string {
	return "oracle"
}
