package repository

import "errors"

// Common repository errors
var (
	ErrEndpointNotFound     = errors.New("endpoint not found")
	ErrEndpointExists       = errors.New("endpoint already exists")
	ErrGraphNotFound        = errors.New("knowledge graph not found")
	ErrGraphExists          = errors.New("knowledge graph already exists")
	ErrTableNotFound        = errors.New("graph table not found")
	ErrRelationshipNotFound = errors.New("graph relationship not found")
	ErrInvalidUUID          = errors.New("invalid UUID format")
	ErrInvalidDatabaseType  = errors.New("invalid database type")
	ErrConnectionFailed     = errors.New("database connection failed")
)
