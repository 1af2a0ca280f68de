package database

import (
	"database/sql"
	"fmt"
	"sort"

	"recon-engine/internal/model"
)

// Driver couples one endpoint type family to its SQL driver: DSN
// construction, driver registration name and connection defaults.
type Driver interface {
	// Open opens a database handle for the given DSN.
	Open(dsn string) (*sql.DB, error)

	// BuildDSN builds a connection string from an endpoint configuration.
	BuildDSN(cfg *model.EndpointConfig) string

	// ValidateDSN rejects connection strings the driver cannot use.
	ValidateDSN(dsn string) error

	// DefaultPort returns the conventional port for the database.
	DefaultPort() int

	// Name returns the registered sql driver name.
	Name() string
}

// Registry holds the drivers for the supported endpoint types.
type Registry struct {
	drivers map[model.DatabaseType]Driver
}

// NewRegistry builds a registry with the built-in relational drivers.
func NewRegistry() *Registry {
	mysql := &mysqlDriver{}
	return &Registry{drivers: map[model.DatabaseType]Driver{
		model.DatabaseTypeMySQL:      mysql,
		model.DatabaseTypeMariaDB:    mysql, // MariaDB speaks the MySQL protocol
		model.DatabaseTypePostgreSQL: &postgresDriver{},
		model.DatabaseTypeOracle:     &oracleDriver{},
		model.DatabaseTypeSQLServer:  &sqlserverDriver{},
	}}
}

// Get returns the driver for the given endpoint type.
func (r *Registry) Get(dbType model.DatabaseType) (Driver, error) {
	if d, ok := r.drivers[dbType]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("no driver registered for database type %q", dbType)
}

// Register adds or replaces a driver.
func (r *Registry) Register(dbType model.DatabaseType, d Driver) {
	r.drivers[dbType] = d
}

// SupportedTypes returns the registered endpoint types in sorted order.
func (r *Registry) SupportedTypes() []model.DatabaseType {
	types := make([]model.DatabaseType, 0, len(r.drivers))
	for t := range r.drivers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
