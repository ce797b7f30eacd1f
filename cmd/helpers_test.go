// ABOUTME: Shared fixtures for command tests
// ABOUTME: A fake backend on httptest and a temporary state directory per test

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/markalston/review-insight/internal/models"
)

// fakeBackend serves the endpoints the commands call and counts requests
type fakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	onboarded bool
	credits   int
	lastQuery string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{calls: map[string]int{}, credits: 10}

	mux := http.NewServeMux()
	handle := func(pattern string, fn func(w http.ResponseWriter, r *http.Request)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[pattern]++
			b.mu.Unlock()
			fn(w, r)
		})
	}

	handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeStatus(w, http.StatusOK, models.AuthResponse{Token: "tok", User: b.user(req.Email)})
	})
	handle("POST /auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]any{"user": b.user("kim@example.com")})
	})
	// the record keeps onboarding_completed as set by the test; the device flag decides
	handle("POST /auth/complete-onboarding", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handle("GET /store", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, []models.Store{
			{ID: "s1", Name: "Cafe Blue", NaverURL: "https://naver.me/blue"},
			{ID: "s2", Name: "Noodle Bar"},
		})
	})
	handle("POST /store/extract", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.ExtractedStore{Name: "Cafe Blue", NaverURL: "https://naver.me/blue"})
	})
	handle("POST /store/register-store", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.Store{ID: "s1", Name: "Cafe Blue", NaverURL: "https://naver.me/blue"})
	})
	handle("PUT /store/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateStoreRequest
		json.NewDecoder(r.Body).Decode(&req)
		s := models.Store{ID: r.PathValue("id"), Name: "Cafe Blue"}
		if req.NaverURL != nil {
			s.NaverURL = *req.NaverURL
		}
		if req.GoogleURL != nil {
			s.GoogleURL = *req.GoogleURL
		}
		writeStatus(w, http.StatusOK, s)
	})
	handle("POST /crawler/{channel}", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.CrawlResult{Collected: 42})
	})
	handle("POST /ai/summary/missing", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.BatchResult{Processed: 42})
	})
	handle("POST /ai/summary/batch", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.BatchResult{Processed: 42})
	})
	handle("POST /ai/insight/report", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		credits := b.credits
		b.mu.Unlock()
		if credits <= 0 {
			writeStatus(w, http.StatusPaymentRequired, map[string]any{"error": map[string]string{"code": "INSUFFICIENT_CREDITS", "message": "not enough credits"}})
			return
		}
		writeStatus(w, http.StatusOK, models.Report{ID: "rp1", StoreID: "s1", Content: "Guests love the coffee."})
	})
	handle("GET /reviews", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.lastQuery = r.URL.RawQuery
		b.mu.Unlock()
		writeStatus(w, http.StatusOK, models.ReviewList{
			Reviews: []models.Review{{ID: "r1", Channel: "naver", Rating: 5, Content: "Great\nlatte", Sentiment: "positive"}},
			Total:   1,
		})
	})
	handle("GET /insight", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, models.Insight{TotalReviews: 12, AverageRating: 4.5, PositiveRatio: 0.75,
			PositiveKeywords: []models.Keyword{{Word: "coffee", Count: 7}}})
	})
	handle("GET /reports", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, []models.Report{{ID: "rp1", Title: "Weekly", Content: "Guests love the coffee."}})
	})
	handle("POST /billing/credits", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreditPurchaseRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.credits += req.Credits
		b.mu.Unlock()
		writeStatus(w, http.StatusOK, models.BillingResult{Success: true, OrderID: "o1"})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) user(email string) *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &models.User{ID: "u1", Email: email, Name: "Kim", Credits: b.credits, OnboardingCompleted: b.onboarded}
}

func (b *fakeBackend) count(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[pattern]
}

func (b *fakeBackend) setOnboarded(v bool) {
	b.mu.Lock()
	b.onboarded = v
	b.mu.Unlock()
}

func (b *fakeBackend) setCredits(n int) {
	b.mu.Lock()
	b.credits = n
	b.mu.Unlock()
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// useBackend points the global flags at b and a fresh state directory
func useBackend(t *testing.T, b *fakeBackend) {
	t.Helper()
	t.Setenv("REVIEW_INSIGHT_POLL_INTERVAL", "10ms")
	t.Setenv("REVIEW_INSIGHT_POLL_TIMEOUT", "1s")
	apiURL = b.URL
	stateDir = t.TempDir()
	logOutput = io.Discard
	t.Cleanup(func() {
		apiURL, stateDir, jsonOutput = "", "", false
		logOutput = io.Discard
	})
}

// login runs the login command with valid credentials
func login(t *testing.T) {
	t.Helper()
	authEmail, authPassword = "kim@example.com", "secret"
	defer func() { authEmail, authPassword = "", "" }()

	var buf bytes.Buffer
	if code := runLogin(context.Background(), &buf, nil); code != exitOK {
		t.Fatalf("login failed with %d: %s", code, buf.String())
	}
}
