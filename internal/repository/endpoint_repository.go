package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"recon-engine/internal/model"
)

type endpointRepository struct {
	db *gorm.DB
}

// NewEndpointRepository creates a new instance of EndpointRepository
func NewEndpointRepository(db *gorm.DB) EndpointRepository {
	return &endpointRepository{db: db}
}

// Create a new endpoint
func (r *endpointRepository) Create(ctx context.Context, endpoint *model.Endpoint) error {
	return r.db.WithContext(ctx).Create(endpoint).Error
}

// GetByID retrieves an endpoint by its UUID
func (r *endpointRepository) GetByID(ctx context.Context, id string) (*model.Endpoint, error) {
	var endpoint model.Endpoint
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&endpoint)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEndpointNotFound
		}
		return nil, result.Error
	}
	return &endpoint, nil
}

// GetByName retrieves an endpoint by its name
func (r *endpointRepository) GetByName(ctx context.Context, name string) (*model.Endpoint, error) {
	var endpoint model.Endpoint
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&endpoint)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEndpointNotFound
		}
		return nil, result.Error
	}
	return &endpoint, nil
}

// GetAll retrieves all endpoints with optional status filtering
func (r *endpointRepository) GetAll(ctx context.Context, status model.EndpointStatus, limit, offset int) ([]*model.Endpoint, int64, error) {
	var endpoints []*model.Endpoint
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Endpoint{})

	// Apply status filter if provided
	if status != "" {
		query = query.Where("status = ?", status)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get endpoints with pagination
	result := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&endpoints)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return endpoints, total, nil
}

// Update updates an existing endpoint
func (r *endpointRepository) Update(ctx context.Context, endpoint *model.Endpoint) error {
	return r.db.WithContext(ctx).Save(endpoint).Error
}

// Delete removes an endpoint
func (r *endpointRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Endpoint{}).Error
}

// SetStatus updates the status of an endpoint
func (r *endpointRepository) SetStatus(ctx context.Context, id string, status model.EndpointStatus) error {
	return r.db.WithContext(ctx).Model(&model.Endpoint{}).Where("id = ?", id).Update("status", status).Error
}

// CountByStatus returns the count of endpoints by status
func (r *endpointRepository) CountByStatus(ctx context.Context) (map[model.EndpointStatus]int64, error) {
	var results []struct {
		Status model.EndpointStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&model.Endpoint{}).Select("status, COUNT(*) as count").Group("status").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.EndpointStatus]int64)
	for _, result := range results {
		counts[result.Status] = result.Count
	}

	return counts, nil
}
