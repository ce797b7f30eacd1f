// ABOUTME: Review, summary, reply, insight and report endpoints
// ABOUTME: Read endpoints here are the ones screens route through the cache

package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/markalston/review-insight/internal/models"
)

// ReviewsQuery encodes q as GET /reviews query parameters
func ReviewsQuery(q models.ReviewQuery) url.Values {
	v := url.Values{}
	if q.StoreID != "" {
		v.Set("store_id", q.StoreID)
	}
	if q.Channel != "" {
		v.Set("channel", q.Channel)
	}
	if q.Sentiment != "" {
		v.Set("sentiment", q.Sentiment)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// ListReviews calls GET /reviews
func (c *Client) ListReviews(ctx context.Context, q models.ReviewQuery) (*models.ReviewList, error) {
	var list models.ReviewList
	if err := c.get(ctx, "/reviews", ReviewsQuery(q), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetReview calls GET /reviews/:id
func (c *Client) GetReview(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := c.get(ctx, pathID("/reviews", id), nil, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// GetSummary calls GET /summary/:id
func (c *Client) GetSummary(ctx context.Context, reviewID string) (*models.Summary, error) {
	var summary models.Summary
	if err := c.get(ctx, pathID("/summary", reviewID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Summarize calls POST /ai/summary
func (c *Client) Summarize(ctx context.Context, req *models.SummaryRequest) (*models.Summary, error) {
	var summary models.Summary
	if err := c.post(ctx, "/ai/summary", req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SummarizeMissing calls POST /ai/summary/missing
func (c *Client) SummarizeMissing(ctx context.Context, req *models.BatchRequest) (*models.BatchResult, error) {
	var result models.BatchResult
	if err := c.post(ctx, "/ai/summary/missing", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SummarizeBatch calls POST /ai/summary/batch
func (c *Client) SummarizeBatch(ctx context.Context, req *models.BatchRequest) (*models.BatchResult, error) {
	var result models.BatchResult
	if err := c.post(ctx, "/ai/summary/batch", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateReply calls POST /ai/reply
func (c *Client) GenerateReply(ctx context.Context, req *models.ReplyRequest) (*models.Reply, error) {
	var reply models.Reply
	if err := c.post(ctx, "/ai/reply", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// GetReply calls GET /reply/:id
func (c *Client) GetReply(ctx context.Context, reviewID string) (*models.Reply, error) {
	var reply models.Reply
	if err := c.get(ctx, pathID("/reply", reviewID), nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// SaveReply calls POST /reply
func (c *Client) SaveReply(ctx context.Context, reply *models.Reply) (*models.Reply, error) {
	var saved models.Reply
	if err := c.post(ctx, "/reply", reply, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Insight calls GET /insight
func (c *Client) Insight(ctx context.Context) (*models.Insight, error) {
	var insight models.Insight
	if err := c.get(ctx, "/insight", nil, &insight); err != nil {
		return nil, err
	}
	return &insight, nil
}

// UserInsight calls GET /insight/:userId
func (c *Client) UserInsight(ctx context.Context, userID string) (*models.Insight, error) {
	var insight models.Insight
	if err := c.get(ctx, pathID("/insight", userID), nil, &insight); err != nil {
		return nil, err
	}
	return &insight, nil
}

// GenerateReport calls POST /ai/insight/report
func (c *Client) GenerateReport(ctx context.Context, req *models.ReportRequest) (*models.Report, error) {
	var report models.Report
	if err := c.post(ctx, "/ai/insight/report", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports calls GET /reports
func (c *Client) ListReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.get(ctx, "/reports", nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}
