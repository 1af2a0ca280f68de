package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DatabaseType string

const (
	DatabaseTypeMySQL      DatabaseType = "mysql"
	DatabaseTypeMariaDB    DatabaseType = "mariadb"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
	DatabaseTypeOracle     DatabaseType = "oracle"
	DatabaseTypeSQLServer  DatabaseType = "sqlserver"
)

type EndpointStatus string

const (
	EndpointStatusActive   EndpointStatus = "active"
	EndpointStatusInactive EndpointStatus = "inactive"
	EndpointStatusError    EndpointStatus = "error"
)

// Endpoint represents a reconciliation execution connection. Generated
// queries run against the source and target endpoints of a run.
type Endpoint struct {
	ID        string         `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Type      DatabaseType   `gorm:"type:enum('mysql','mariadb','postgresql','oracle','sqlserver');not null" json:"type"`
	Config    EndpointConfig `gorm:"type:json;not null" json:"config"`
	Status    EndpointStatus `gorm:"type:enum('active','inactive','error');default:'active'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// EndpointConfig holds the connection configuration for an endpoint.
// Password is encrypted at rest by the credential vault.
type EndpointConfig struct {
	Host            string                 `json:"host" validate:"required"`
	Port            int                    `json:"port" validate:"required,min=1,max=65535"`
	Database        string                 `json:"database" validate:"required"`
	Username        string                 `json:"username" validate:"required"`
	Password        string                 `json:"password" validate:"required"`
	SSL             bool                   `json:"ssl"`
	Timeout         int                    `json:"timeout"`
	MaxPoolSize     int                    `json:"maxPoolSize"`
	IdleTimeout     int                    `json:"idleTimeout"`
	MaxLifetime     int                    `json:"maxLifetime"`
	Timezone        string                 `json:"timezone"`
	AdditionalProps map[string]interface{} `json:"additionalProps,omitempty"`
}

// Value implements driver.Valuer interface for GORM
func (ec EndpointConfig) Value() (driver.Value, error) {
	return json.Marshal(ec)
}

// Scan implements sql.Scanner interface for GORM
func (ec *EndpointConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return json.Unmarshal([]byte(v.(string)), ec)
	}

	return json.Unmarshal(bytes, ec)
}

// TableName returns the table name for the Endpoint model
func (Endpoint) TableName() string {
	return "endpoints"
}

// BeforeCreate generates a new UUID if ID is empty
func (e *Endpoint) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// IsValidDatabaseType checks if a database type is valid
func IsValidDatabaseType(dbType string) bool {
	switch DatabaseType(dbType) {
	case DatabaseTypeMySQL, DatabaseTypeMariaDB, DatabaseTypePostgreSQL,
		DatabaseTypeOracle, DatabaseTypeSQLServer:
		return true
	default:
		return false
	}
}
