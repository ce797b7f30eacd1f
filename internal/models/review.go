// ABOUTME: Review, summary, reply and insight models
// ABOUTME: Records produced by the crawler and AI endpoints

package models

// Sentiment labels assigned by the backend
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Review is a single customer review collected from a channel
type Review struct {
	ID        string  `json:"id"`
	StoreID   string  `json:"store_id"`
	Channel   string  `json:"channel"`
	Author    string  `json:"author,omitempty"`
	Rating    float64 `json:"rating"`
	Content   string  `json:"content"`
	Sentiment string  `json:"sentiment,omitempty"`
	Replied   bool    `json:"replied"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// ReviewQuery filters GET /reviews
type ReviewQuery struct {
	StoreID   string
	Channel   string
	Sentiment string
	Page      int
	Limit     int
}

// ReviewList is a page of reviews
type ReviewList struct {
	Reviews []Review `json:"reviews"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
}

// Summary is the AI summary of one review
type Summary struct {
	ReviewID  string   `json:"review_id"`
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// SummaryRequest asks for one review summary
type SummaryRequest struct {
	ReviewID string `json:"review_id"`
}

// BatchRequest scopes the missing/batch summary jobs to a store
type BatchRequest struct {
	StoreID string `json:"store_id"`
}

// BatchResult reports how many reviews a batch job touched
type BatchResult struct {
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
}

// ReplyRequest asks the AI to draft a reply
type ReplyRequest struct {
	ReviewID string `json:"review_id"`
	Tone     string `json:"tone,omitempty"`
}

// Reply is a drafted or saved review reply
type Reply struct {
	ID        string `json:"id,omitempty"`
	ReviewID  string `json:"review_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CrawlRequest starts collection for one channel of a store
type CrawlRequest struct {
	StoreID string `json:"store_id"`
	URL     string `json:"url"`
}

// CrawlResult reports how many reviews were collected
type CrawlResult struct {
	Collected int `json:"collected"`
}

// Keyword is a term with its frequency
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Insight aggregates sentiment and keywords across a user's stores
type Insight struct {
	UserID           string    `json:"user_id,omitempty"`
	TotalReviews     int       `json:"total_reviews"`
	AverageRating    float64   `json:"average_rating"`
	PositiveRatio    float64   `json:"positive_ratio"`
	NegativeRatio    float64   `json:"negative_ratio"`
	PositiveKeywords []Keyword `json:"positive_keywords,omitempty"`
	NegativeKeywords []Keyword `json:"negative_keywords,omitempty"`
}

// ReportRequest asks for an insight report
type ReportRequest struct {
	StoreID string `json:"store_id"`
}

// Report is a generated insight report
type Report struct {
	ID        string `json:"id"`
	StoreID   string `json:"store_id"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}
