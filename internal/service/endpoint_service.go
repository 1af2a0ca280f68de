package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"recon-engine/internal/database"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
	"recon-engine/internal/security"
)

// EndpointService manages execution endpoints. Passwords are encrypted
// through the credential vault before they reach the metadata store and
// decrypted only when a connection is opened.
type EndpointService interface {
	CreateEndpoint(ctx context.Context, req *CreateEndpointRequest) (*model.Endpoint, error)
	GetEndpoint(ctx context.Context, id string) (*model.Endpoint, error)
	GetEndpointByName(ctx context.Context, name string) (*model.Endpoint, error)
	ListEndpoints(ctx context.Context, req *ListEndpointsRequest) (*ListEndpointsResponse, error)
	UpdateEndpoint(ctx context.Context, id string, req *UpdateEndpointRequest) (*model.Endpoint, error)
	DeleteEndpoint(ctx context.Context, id string) error
	TestEndpoint(ctx context.Context, id string) (*database.HealthCheckResult, error)
	TestConfig(ctx context.Context, dbType model.DatabaseType, cfg *model.EndpointConfig) (*database.HealthCheckResult, error)
	// OpenEndpoint resolves an endpoint by name or ID with its password
	// decrypted, ready for the connection pool.
	OpenEndpoint(ctx context.Context, nameOrID string) (*model.Endpoint, error)
}

type endpointService struct {
	repo    repository.EndpointRepository
	pool    *database.Pool
	checker *database.HealthChecker
	vault   *security.CredentialVault
}

type CreateEndpointRequest struct {
	Name   string               `json:"name" validate:"required,min=1,max=255"`
	Type   model.DatabaseType   `json:"type" validate:"required"`
	Config model.EndpointConfig `json:"config" validate:"required"`
}

type UpdateEndpointRequest struct {
	Name   *string               `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Config *model.EndpointConfig `json:"config,omitempty"`
	Status *model.EndpointStatus `json:"status,omitempty"`
}

type ListEndpointsRequest struct {
	Status model.EndpointStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Offset int                  `json:"offset,omitempty" validate:"omitempty,min=0"`
}

type ListEndpointsResponse struct {
	Endpoints []*model.Endpoint `json:"endpoints"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// NewEndpointService creates a new EndpointService. vault may be nil,
// in which case passwords are stored as given.
func NewEndpointService(repo repository.EndpointRepository, pool *database.Pool, checker *database.HealthChecker, vault *security.CredentialVault) EndpointService {
	return &endpointService{
		repo:    repo,
		pool:    pool,
		checker: checker,
		vault:   vault,
	}
}

func (s *endpointService) CreateEndpoint(ctx context.Context, req *CreateEndpointRequest) (*model.Endpoint, error) {
	if !model.IsValidDatabaseType(string(req.Type)) {
		return nil, repository.ErrInvalidDatabaseType
	}
	if existing, _ := s.repo.GetByName(ctx, req.Name); existing != nil {
		return nil, repository.ErrEndpointExists
	}
	if err := s.checker.ValidateConfig(req.Type, &req.Config); err != nil {
		return nil, fmt.Errorf("invalid endpoint config: %w", err)
	}

	cfg := req.Config
	if err := s.sealPassword(&cfg); err != nil {
		return nil, err
	}

	endpoint := &model.Endpoint{
		Name:   req.Name,
		Type:   req.Type,
		Config: cfg,
		Status: model.EndpointStatusActive,
	}
	if err := s.repo.Create(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("failed to create endpoint: %w", err)
	}
	return sanitize(endpoint), nil
}

func (s *endpointService) GetEndpoint(ctx context.Context, id string) (*model.Endpoint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrInvalidUUID
	}
	endpoint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitize(endpoint), nil
}

func (s *endpointService) GetEndpointByName(ctx context.Context, name string) (*model.Endpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	endpoint, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return sanitize(endpoint), nil
}

func (s *endpointService) ListEndpoints(ctx context.Context, req *ListEndpointsRequest) (*ListEndpointsResponse, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	endpoints, total, err := s.repo.GetAll(ctx, req.Status, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	for i, e := range endpoints {
		endpoints[i] = sanitize(e)
	}
	return &ListEndpointsResponse{
		Endpoints: endpoints,
		Total:     total,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}, nil
}

func (s *endpointService) UpdateEndpoint(ctx context.Context, id string, req *UpdateEndpointRequest) (*model.Endpoint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrInvalidUUID
	}
	endpoint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		endpoint.Name = *req.Name
	}
	if req.Config != nil {
		if err := s.checker.ValidateConfig(endpoint.Type, req.Config); err != nil {
			return nil, fmt.Errorf("invalid endpoint config: %w", err)
		}
		cfg := *req.Config
		if err := s.sealPassword(&cfg); err != nil {
			return nil, err
		}
		endpoint.Config = cfg
	}
	if req.Status != nil {
		endpoint.Status = *req.Status
	}

	if err := s.repo.Update(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("failed to update endpoint: %w", err)
	}
	// The pooled connection may hold stale credentials now.
	s.pool.Invalidate(endpoint.ID)
	return sanitize(endpoint), nil
}

func (s *endpointService) DeleteEndpoint(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrInvalidUUID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.pool.Invalidate(id)
	return nil
}

func (s *endpointService) TestEndpoint(ctx context.Context, id string) (*database.HealthCheckResult, error) {
	endpoint, err := s.OpenEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.checker.CheckEndpoint(ctx, endpoint)
	status := model.EndpointStatusActive
	if result.Status != "healthy" {
		status = model.EndpointStatusError
	}
	if err := s.repo.SetStatus(ctx, endpoint.ID, status); err != nil {
		return result, nil
	}
	return result, nil
}

func (s *endpointService) TestConfig(ctx context.Context, dbType model.DatabaseType, cfg *model.EndpointConfig) (*database.HealthCheckResult, error) {
	if !model.IsValidDatabaseType(string(dbType)) {
		return nil, repository.ErrInvalidDatabaseType
	}
	return s.checker.TestConfig(ctx, dbType, cfg), nil
}

// OpenEndpoint accepts either a UUID or a name and returns the endpoint
// with its password decrypted. Only the executor path uses it; API
// responses always carry sanitized endpoints.
func (s *endpointService) OpenEndpoint(ctx context.Context, nameOrID string) (*model.Endpoint, error) {
	var endpoint *model.Endpoint
	var err error
	if _, uuidErr := uuid.Parse(nameOrID); uuidErr == nil {
		endpoint, err = s.repo.GetByID(ctx, nameOrID)
	} else {
		endpoint, err = s.repo.GetByName(ctx, nameOrID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.unsealPassword(&endpoint.Config); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (s *endpointService) sealPassword(cfg *model.EndpointConfig) error {
	if s.vault == nil || cfg.Password == "" {
		return nil
	}
	sealed, err := s.vault.EncryptString(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	cfg.Password = sealed
	return nil
}

func (s *endpointService) unsealPassword(cfg *model.EndpointConfig) error {
	if s.vault == nil || cfg.Password == "" {
		return nil
	}
	plain, err := s.vault.DecryptString(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	cfg.Password = plain
	return nil
}

// sanitize strips the stored password from API-facing copies.
func sanitize(e *model.Endpoint) *model.Endpoint {
	cp := *e
	cp.Config.Password = ""
	return &cp
}
