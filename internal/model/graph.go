package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RelationType string

const (
	RelationTypeOneToOne   RelationType = "one_to_one"
	RelationTypeOneToMany  RelationType = "one_to_many"
	RelationTypeManyToOne  RelationType = "many_to_one"
	RelationTypeManyToMany RelationType = "many_to_many"
)

// KnowledgeGraph is the top-level container for tables and relationships.
// Version is bumped on every mutation so derived caches can detect staleness.
type KnowledgeGraph struct {
	ID            string              `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string              `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description   string              `gorm:"type:text" json:"description,omitempty"`
	Version       int64               `gorm:"not null;default:1" json:"version"`
	Tables        []GraphTable        `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE" json:"tables,omitempty"`
	Relationships []GraphRelationship `gorm:"foreignKey:GraphID;constraint:OnDelete:CASCADE" json:"relationships,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// GraphTable is a table node in a knowledge graph. Aliases are the
// natural-language names a definition may use to refer to the table.
type GraphTable struct {
	ID         string     `gorm:"type:char(36);primaryKey" json:"id"`
	GraphID    string     `gorm:"type:char(36);not null;index" json:"graph_id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	SchemaName string     `gorm:"size:255" json:"schema_name,omitempty"`
	Columns    ColumnList `gorm:"type:json" json:"columns,omitempty"`
	Aliases    StringList `gorm:"type:json" json:"aliases,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// GraphRelationship is a join edge between two tables. Confidence weights
// path selection when multiple join paths have the same length.
type GraphRelationship struct {
	ID            string       `gorm:"type:char(36);primaryKey" json:"id"`
	GraphID       string       `gorm:"type:char(36);not null;index" json:"graph_id"`
	SourceTable   string       `gorm:"size:255;not null" json:"source_table"`
	SourceColumn  string       `gorm:"size:255;not null" json:"source_column"`
	TargetTable   string       `gorm:"size:255;not null" json:"target_table"`
	TargetColumn  string       `gorm:"size:255;not null" json:"target_column"`
	RelationType  RelationType `gorm:"type:enum('one_to_one','one_to_many','many_to_one','many_to_many');default:'one_to_many'" json:"relation_type"`
	Confidence    float64      `gorm:"not null;default:1" json:"confidence"`
	Bidirectional bool         `gorm:"not null;default:true" json:"bidirectional"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ColumnDef describes a single column of a graph table.
type ColumnDef struct {
	Name     string `json:"name" validate:"required"`
	DataType string `json:"data_type,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// ColumnList stores column definitions as a JSON column.
type ColumnList []ColumnDef

// Value implements driver.Valuer interface for GORM
func (cl ColumnList) Value() (driver.Value, error) {
	if cl == nil {
		return json.Marshal([]ColumnDef{})
	}
	return json.Marshal(cl)
}

// Scan implements sql.Scanner interface for GORM
func (cl *ColumnList) Scan(value interface{}) error {
	if value == nil {
		*cl = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return json.Unmarshal([]byte(v.(string)), cl)
	}

	return json.Unmarshal(bytes, cl)
}

// StringList stores a list of strings as a JSON column.
type StringList []string

// Value implements driver.Valuer interface for GORM
func (sl StringList) Value() (driver.Value, error) {
	if sl == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(sl)
}

// Scan implements sql.Scanner interface for GORM
func (sl *StringList) Scan(value interface{}) error {
	if value == nil {
		*sl = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return json.Unmarshal([]byte(v.(string)), sl)
	}

	return json.Unmarshal(bytes, sl)
}

// TableName returns the table name for the KnowledgeGraph model
func (KnowledgeGraph) TableName() string {
	return "knowledge_graphs"
}

// TableName returns the table name for the GraphTable model
func (GraphTable) TableName() string {
	return "graph_tables"
}

// TableName returns the table name for the GraphRelationship model
func (GraphRelationship) TableName() string {
	return "graph_relationships"
}

// BeforeCreate generates a new UUID if ID is empty
func (kg *KnowledgeGraph) BeforeCreate(tx *gorm.DB) error {
	if kg.ID == "" {
		kg.ID = uuid.New().String()
	}
	return nil
}

// BeforeCreate generates a new UUID if ID is empty
func (gt *GraphTable) BeforeCreate(tx *gorm.DB) error {
	if gt.ID == "" {
		gt.ID = uuid.New().String()
	}
	return nil
}

// BeforeCreate generates a new UUID if ID is empty
func (gr *GraphRelationship) BeforeCreate(tx *gorm.DB) error {
	if gr.ID == "" {
		gr.ID = uuid.New().String()
	}
	return nil
}

// IsValidRelationType checks if a relation type is valid
func IsValidRelationType(rt string) bool {
	switch RelationType(rt) {
	case RelationTypeOneToOne, RelationTypeOneToMany, RelationTypeManyToOne, RelationTypeManyToMany:
		return true
	default:
		return false
	}
}
