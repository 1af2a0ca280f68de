package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"recon-engine/internal/model"
)

type graphRepository struct {
	db *gorm.DB
}

// NewGraphRepository creates a new instance of GraphRepository
func NewGraphRepository(db *gorm.DB) GraphRepository {
	return &graphRepository{db: db}
}

// Create a new knowledge graph with its tables and relationships
func (r *graphRepository) Create(ctx context.Context, graph *model.KnowledgeGraph) error {
	if graph.Version == 0 {
		graph.Version = 1
	}
	return r.db.WithContext(ctx).Create(graph).Error
}

// GetByID retrieves a graph by its UUID, including tables and relationships
func (r *graphRepository) GetByID(ctx context.Context, id string) (*model.KnowledgeGraph, error) {
	var graph model.KnowledgeGraph
	result := r.db.WithContext(ctx).
		Preload("Tables").
		Preload("Relationships").
		Where("id = ?", id).
		First(&graph)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGraphNotFound
		}
		return nil, result.Error
	}
	return &graph, nil
}

// GetByName retrieves a graph by its name, including tables and relationships
func (r *graphRepository) GetByName(ctx context.Context, name string) (*model.KnowledgeGraph, error) {
	var graph model.KnowledgeGraph
	result := r.db.WithContext(ctx).
		Preload("Tables").
		Preload("Relationships").
		Where("name = ?", name).
		First(&graph)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGraphNotFound
		}
		return nil, result.Error
	}
	return &graph, nil
}

// GetAll retrieves all graphs without their tables and relationships
func (r *graphRepository) GetAll(ctx context.Context, limit, offset int) ([]*model.KnowledgeGraph, int64, error) {
	var graphs []*model.KnowledgeGraph
	var total int64

	query := r.db.WithContext(ctx).Model(&model.KnowledgeGraph{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	result := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&graphs)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return graphs, total, nil
}

// Update updates graph metadata and bumps its version
func (r *graphRepository) Update(ctx context.Context, graph *model.KnowledgeGraph) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		graph.Version++
		return tx.Model(&model.KnowledgeGraph{}).Where("id = ?", graph.ID).Updates(map[string]interface{}{
			"name":        graph.Name,
			"description": graph.Description,
			"version":     graph.Version,
		}).Error
	})
}

// Delete removes a graph with its tables and relationships
func (r *graphRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("graph_id = ?", id).Delete(&model.GraphRelationship{}).Error; err != nil {
			return err
		}
		if err := tx.Where("graph_id = ?", id).Delete(&model.GraphTable{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.KnowledgeGraph{}).Error
	})
}

// AddTable adds a table to a graph and bumps the graph version
func (r *graphRepository) AddTable(ctx context.Context, graphID string, table *model.GraphTable) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table.GraphID = graphID
		if err := tx.Create(table).Error; err != nil {
			return err
		}
		return bumpVersion(tx, graphID)
	})
}

// UpdateTable updates a table and bumps the graph version
func (r *graphRepository) UpdateTable(ctx context.Context, graphID string, table *model.GraphTable) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.GraphTable{}).
			Where("graph_id = ? AND name = ?", graphID, table.Name).
			Updates(map[string]interface{}{
				"schema_name": table.SchemaName,
				"columns":     table.Columns,
				"aliases":     table.Aliases,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTableNotFound
		}
		return bumpVersion(tx, graphID)
	})
}

// DeleteTable removes a table and its relationships, bumping the graph version
func (r *graphRepository) DeleteTable(ctx context.Context, graphID, tableName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("graph_id = ? AND name = ?", graphID, tableName).Delete(&model.GraphTable{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTableNotFound
		}
		if err := tx.Where("graph_id = ? AND (source_table = ? OR target_table = ?)", graphID, tableName, tableName).
			Delete(&model.GraphRelationship{}).Error; err != nil {
			return err
		}
		return bumpVersion(tx, graphID)
	})
}

// AddRelationship adds a relationship to a graph and bumps the graph version
func (r *graphRepository) AddRelationship(ctx context.Context, graphID string, rel *model.GraphRelationship) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel.GraphID = graphID
		if err := tx.Create(rel).Error; err != nil {
			return err
		}
		return bumpVersion(tx, graphID)
	})
}

// DeleteRelationship removes a relationship and bumps the graph version
func (r *graphRepository) DeleteRelationship(ctx context.Context, graphID, relID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("graph_id = ? AND id = ?", graphID, relID).Delete(&model.GraphRelationship{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRelationshipNotFound
		}
		return bumpVersion(tx, graphID)
	})
}

// ReplaceContents replaces all tables and relationships of a graph in one
// transaction, bumping the graph version
func (r *graphRepository) ReplaceContents(ctx context.Context, graphID string, tables []model.GraphTable, rels []model.GraphRelationship) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("graph_id = ?", graphID).Delete(&model.GraphRelationship{}).Error; err != nil {
			return err
		}
		if err := tx.Where("graph_id = ?", graphID).Delete(&model.GraphTable{}).Error; err != nil {
			return err
		}
		for i := range tables {
			tables[i].GraphID = graphID
			if err := tx.Create(&tables[i]).Error; err != nil {
				return err
			}
		}
		for i := range rels {
			rels[i].GraphID = graphID
			if err := tx.Create(&rels[i]).Error; err != nil {
				return err
			}
		}
		return bumpVersion(tx, graphID)
	})
}

func bumpVersion(tx *gorm.DB, graphID string) error {
	result := tx.Model(&model.KnowledgeGraph{}).
		Where("id = ?", graphID).
		Update("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGraphNotFound
	}
	return nil
}
