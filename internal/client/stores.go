// ABOUTME: Store endpoints: list, create, extract, register, update and delete
// ABOUTME: Used by the setup wizard and the stores command

package client

import (
	"context"

	"github.com/markalston/review-insight/internal/models"
)

// ListStores calls GET /store
func (c *Client) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := c.get(ctx, "/store", nil, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// CreateStore calls POST /store
func (c *Client) CreateStore(ctx context.Context, req *models.CreateStoreRequest) (*models.Store, error) {
	var store models.Store
	if err := c.post(ctx, "/store", req, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// ExtractStore calls POST /store/extract
func (c *Client) ExtractStore(ctx context.Context, req *models.ExtractRequest) (*models.ExtractedStore, error) {
	var extracted models.ExtractedStore
	if err := c.post(ctx, "/store/extract", req, &extracted); err != nil {
		return nil, err
	}
	return &extracted, nil
}

// RegisterStore calls POST /store/register-store
func (c *Client) RegisterStore(ctx context.Context, req *models.RegisterStoreRequest) (*models.Store, error) {
	var store models.Store
	if err := c.post(ctx, "/store/register-store", req, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// UpdateStore calls PUT /store/:id
func (c *Client) UpdateStore(ctx context.Context, id string, req *models.UpdateStoreRequest) (*models.Store, error) {
	var store models.Store
	if err := c.put(ctx, pathID("/store", id), req, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// DeleteStore calls DELETE /store/:id
func (c *Client) DeleteStore(ctx context.Context, id string) error {
	return c.delete(ctx, pathID("/store", id))
}
