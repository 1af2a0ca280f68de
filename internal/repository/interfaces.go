package repository

import (
	"context"

	"recon-engine/internal/model"
)

// EndpointRepository defines the interface for endpoint data access
type EndpointRepository interface {
	// Create a new endpoint
	Create(ctx context.Context, endpoint *model.Endpoint) error

	// GetByID retrieves an endpoint by its UUID
	GetByID(ctx context.Context, id string) (*model.Endpoint, error)

	// GetByName retrieves an endpoint by its name
	GetByName(ctx context.Context, name string) (*model.Endpoint, error)

	// GetAll retrieves all endpoints with optional status filtering
	GetAll(ctx context.Context, status model.EndpointStatus, limit, offset int) ([]*model.Endpoint, int64, error)

	// Update updates an existing endpoint
	Update(ctx context.Context, endpoint *model.Endpoint) error

	// Delete removes an endpoint
	Delete(ctx context.Context, id string) error

	// SetStatus updates the status of an endpoint
	SetStatus(ctx context.Context, id string, status model.EndpointStatus) error

	// CountByStatus returns the count of endpoints by status
	CountByStatus(ctx context.Context) (map[model.EndpointStatus]int64, error)
}

// GraphRepository defines the interface for knowledge graph data access
type GraphRepository interface {
	// Create a new knowledge graph with its tables and relationships
	Create(ctx context.Context, graph *model.KnowledgeGraph) error

	// GetByID retrieves a graph by its UUID, including tables and relationships
	GetByID(ctx context.Context, id string) (*model.KnowledgeGraph, error)

	// GetByName retrieves a graph by its name, including tables and relationships
	GetByName(ctx context.Context, name string) (*model.KnowledgeGraph, error)

	// GetAll retrieves all graphs without their tables and relationships
	GetAll(ctx context.Context, limit, offset int) ([]*model.KnowledgeGraph, int64, error)

	// Update updates graph metadata and bumps its version
	Update(ctx context.Context, graph *model.KnowledgeGraph) error

	// Delete removes a graph with its tables and relationships
	Delete(ctx context.Context, id string) error

	// AddTable adds a table to a graph and bumps the graph version
	AddTable(ctx context.Context, graphID string, table *model.GraphTable) error

	// UpdateTable updates a table and bumps the graph version
	UpdateTable(ctx context.Context, graphID string, table *model.GraphTable) error

	// DeleteTable removes a table and its relationships, bumping the graph version
	DeleteTable(ctx context.Context, graphID, tableName string) error

	// AddRelationship adds a relationship to a graph and bumps the graph version
	AddRelationship(ctx context.Context, graphID string, rel *model.GraphRelationship) error

	// DeleteRelationship removes a relationship and bumps the graph version
	DeleteRelationship(ctx context.Context, graphID, relID string) error

	// ReplaceContents replaces all tables and relationships of a graph in one
	// transaction, bumping the graph version
	ReplaceContents(ctx context.Context, graphID string, tables []model.GraphTable, rels []model.GraphRelationship) error
}
