// ABOUTME: Billing and crawler endpoints
// ABOUTME: Credits, ad rewards, store subscriptions and per-channel review collection

package client

import (
	"context"
	"fmt"

	"github.com/markalston/review-insight/internal/models"
)

// PurchaseCredits calls POST /billing/credits
func (c *Client) PurchaseCredits(ctx context.Context, req *models.CreditPurchaseRequest) (*models.BillingResult, error) {
	var result models.BillingResult
	if err := c.post(ctx, "/billing/credits", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AdReward calls POST /billing/ad-reward
func (c *Client) AdReward(ctx context.Context, req *models.AdRewardRequest) (*models.BillingResult, error) {
	var result models.BillingResult
	if err := c.post(ctx, "/billing/ad-reward", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubscribeStore calls POST /billing/subscribe-store
func (c *Client) SubscribeStore(ctx context.Context, req *models.SubscribeStoreRequest) (*models.BillingResult, error) {
	var result models.BillingResult
	if err := c.post(ctx, "/billing/subscribe-store", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Crawl calls POST /crawler/naver or POST /crawler/google
func (c *Client) Crawl(ctx context.Context, channel string, req *models.CrawlRequest) (*models.CrawlResult, error) {
	switch channel {
	case models.ChannelNaver, models.ChannelGoogle:
	default:
		return nil, fmt.Errorf("unsupported channel %q", channel)
	}
	var result models.CrawlResult
	if err := c.post(ctx, "/crawler/"+channel, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
