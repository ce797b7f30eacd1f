// ABOUTME: Store models: a business registered for review collection
// ABOUTME: Covers extraction, registration and channel updates

package models

// Review channels supported by the crawler
const (
	ChannelNaver  = "naver"
	ChannelGoogle = "google"
)

// Store is a registered business
type Store struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Category  string `json:"category,omitempty"`
	Phone     string `json:"phone,omitempty"`
	NaverURL  string `json:"naver_url,omitempty"`
	GoogleURL string `json:"google_url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Channels returns the channels that have a URL configured
func (s *Store) Channels() []string {
	var out []string
	if s.NaverURL != "" {
		out = append(out, ChannelNaver)
	}
	if s.GoogleURL != "" {
		out = append(out, ChannelGoogle)
	}
	return out
}

// ExtractRequest asks the backend to resolve store details from a place URL or name
type ExtractRequest struct {
	URL   string `json:"url,omitempty"`
	Query string `json:"query,omitempty"`
}

// ExtractedStore is the backend's best guess at store details before registration
type ExtractedStore struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Category  string `json:"category,omitempty"`
	Phone     string `json:"phone,omitempty"`
	NaverURL  string `json:"naver_url,omitempty"`
	GoogleURL string `json:"google_url,omitempty"`
}

// RegisterStoreRequest registers an extracted store for the current user
type RegisterStoreRequest struct {
	ExtractedStore
}

// CreateStoreRequest creates a store from user-entered fields without extraction
type CreateStoreRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Category string `json:"category,omitempty"`
}

// UpdateStoreRequest changes a store's channel URLs
type UpdateStoreRequest struct {
	NaverURL  *string `json:"naver_url,omitempty"`
	GoogleURL *string `json:"google_url,omitempty"`
}
