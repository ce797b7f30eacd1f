// ABOUTME: Tests for the review-insight API client
// ABOUTME: Uses httptest to mock backend responses

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/session"
	"github.com/markalston/review-insight/internal/storage"
)

type staticTokens struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (s *staticTokens) Token(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.invalidated++
	return nil
}

func TestDo_AttachesHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("expected custom user agent, got %q", got)
		}
		json.NewEncoder(w).Encode([]models.Store{{ID: "s1", Name: "Cafe"}})
	}))
	defer server.Close()

	c := New(server.URL, WithTokenSource(&staticTokens{token: "tok-1"}), WithUserAgent("test-agent"))
	stores, err := c.ListStores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stores) != 1 || stores[0].Name != "Cafe" {
		t.Errorf("unexpected stores: %+v", stores)
	}
}

func TestDo_NoTokenNoAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("expected no Authorization header without a token")
		}
		json.NewEncoder(w).Encode(models.AuthResponse{Token: "t", User: &models.User{ID: "u1"}})
	}))
	defer server.Close()

	c := New(server.URL, WithTokenSource(&staticTokens{}))
	if _, err := c.Login(context.Background(), &models.LoginRequest{Email: "a@b.c", Password: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_UnauthorizedClearsSessionWithoutNavigation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	}))
	defer server.Close()

	ctx := context.Background()
	sess := session.New(storage.NewMemory())
	if err := sess.Hydrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sess.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatal(err)
	}

	var notices []string
	c := New(server.URL,
		WithTokenSource(sess),
		WithNotifier(NotifierFunc(func(msg string) { notices = append(notices, msg) })),
	)
	sess.SetFetcher(c)

	_, err := c.Insight(ctx)
	if !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized kind, got %v", err)
	}

	snap := sess.Snapshot()
	if snap.Token != "" || snap.User != nil {
		t.Errorf("expected cleared session, got %+v", snap)
	}
	if len(notices) != 1 || notices[0] != KindUnauthorized.Message() {
		t.Errorf("expected one session-expired notice, got %v", notices)
	}
}

func TestDo_ForbiddenWithTokenMessageKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
	}))
	defer server.Close()

	ctx := context.Background()
	sess := session.New(storage.NewMemory())
	if err := sess.Hydrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sess.Login(ctx, "tok", &models.User{ID: "u1"}); err != nil {
		t.Fatal(err)
	}

	c := New(server.URL, WithTokenSource(sess))
	_, err := c.GetReview(ctx, "someone-elses")
	if !IsKind(err, KindForbidden) {
		t.Fatalf("expected forbidden kind, got %v", err)
	}
	if sess.Token(ctx) != "tok" || sess.User() == nil {
		t.Error("expected a 403 to leave the session alone")
	}
}

func TestDo_UnauthorizedWithoutTokenDoesNotNotify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer server.Close()

	tokens := &staticTokens{}
	notified := false
	c := New(server.URL, WithTokenSource(tokens), WithNotifier(NotifierFunc(func(string) { notified = true })))

	_, err := c.Login(context.Background(), &models.LoginRequest{Email: "a@b.c", Password: "wrong"})
	if !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized kind, got %v", err)
	}
	if tokens.invalidated != 1 {
		t.Errorf("expected session cleared once, got %d", tokens.invalidated)
	}
	if notified {
		t.Error("expected no session-expired notice for an anonymous request")
	}
}

func TestDo_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"insufficient credits code", 400, `{"code":"INSUFFICIENT_CREDITS","message":"need 10"}`, KindInsufficientCredits},
		{"payment required", 402, `{}`, KindInsufficientCredits},
		{"quota exceeded", 403, `{"error":"QUOTA_EXCEEDED"}`, KindQuotaExceeded},
		{"daily limit", 429, `{"code":"daily-limit-exceeded"}`, KindDailyLimit},
		{"missing batch data", 400, `{"error":{"code":"MISSING_BATCH_DATA","message":"nothing"}}`, KindMissingBatchData},
		{"forbidden", 403, `{"error":"no"}`, KindForbidden},
		{"token message on 403 stays forbidden", 403, `{"error":"Unauthorized"}`, KindForbidden},
		{"token code on 400 stays validation", 400, `{"code":"TOKEN_EXPIRED"}`, KindValidation},
		{"not found", 404, ``, KindNotFound},
		{"validation", 422, `{"error":"bad url"}`, KindValidation},
		{"rate limited", 429, `{}`, KindRateLimited},
		{"server", 503, `upstream down`, KindServer},
		{"numeric code is ignored", 500, `{"error":"x","code":500}`, KindServer},
		{"teapot", 418, `{}`, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := New(server.URL).GetReview(context.Background(), "r1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T %v", err, err)
			}
			if apiErr.Kind != tt.want {
				t.Errorf("Kind = %s, want %s (err %v)", apiErr.Kind, tt.want, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.RequestID == "" {
				t.Error("expected request id on error")
			}
		})
	}
}

func TestDo_ConnectionError(t *testing.T) {
	c := New("http://localhost:99999")
	_, err := c.ListReports(context.Background())
	if KindOf(err) != KindNetwork {
		t.Errorf("expected network kind, got %v", err)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode([]models.Report{})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL).ListReports(ctx)
	if KindOf(err) != KindCanceled {
		t.Errorf("expected canceled kind, got %v", err)
	}
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := New(server.URL, WithTimeout(20*time.Millisecond)).ListReports(context.Background())
	if KindOf(err) != KindTimeout {
		t.Errorf("expected timeout kind, got %v", err)
	}
}

func TestMe_AcceptsBareAndWrappedUser(t *testing.T) {
	bodies := []string{
		`{"id":"u1","email":"a@b.c","credits":7}`,
		`{"user":{"id":"u1","email":"a@b.c","credits":7}}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/auth/profile" {
				t.Errorf("expected POST /auth/profile, got %s %s", r.Method, r.URL.Path)
			}
			io.WriteString(w, body)
		}))

		u, err := New(server.URL).Me(context.Background())
		server.Close()
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", body, err)
		}
		if u.ID != "u1" || u.Credits != 7 {
			t.Errorf("unexpected user %+v", u)
		}
	}
}

func TestLogin_RejectsHalfResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"token":"t"}`)
	}))
	defer server.Close()

	if _, err := New(server.URL).Login(context.Background(), &models.LoginRequest{}); err == nil {
		t.Error("expected error for response without user")
	}
}

func TestEndpoints_Routes(t *testing.T) {
	type call struct {
		name   string
		method string
		path   string
		query  string
		run    func(c *Client) error
	}
	ctx := context.Background()
	calls := []call{
		{"signup", "POST", "/auth/signup", "", func(c *Client) error {
			_, err := c.Signup(ctx, &models.SignupRequest{Email: "a@b.c"})
			return err
		}},
		{"complete onboarding", "POST", "/auth/complete-onboarding", "", func(c *Client) error { return c.CompleteOnboarding(ctx) }},
		{"create store", "POST", "/store", "", func(c *Client) error {
			_, err := c.CreateStore(ctx, &models.CreateStoreRequest{Name: "x"})
			return err
		}},
		{"extract", "POST", "/store/extract", "", func(c *Client) error {
			_, err := c.ExtractStore(ctx, &models.ExtractRequest{URL: "u"})
			return err
		}},
		{"register", "POST", "/store/register-store", "", func(c *Client) error {
			_, err := c.RegisterStore(ctx, &models.RegisterStoreRequest{})
			return err
		}},
		{"update", "PUT", "/store/s 1", "", func(c *Client) error {
			_, err := c.UpdateStore(ctx, "s 1", &models.UpdateStoreRequest{})
			return err
		}},
		{"delete", "DELETE", "/store/s1", "", func(c *Client) error { return c.DeleteStore(ctx, "s1") }},
		{"reviews", "GET", "/reviews", "channel=naver&page=2&store_id=s1", func(c *Client) error {
			_, err := c.ListReviews(ctx, models.ReviewQuery{StoreID: "s1", Channel: "naver", Page: 2})
			return err
		}},
		{"summary", "GET", "/summary/r1", "", func(c *Client) error {
			_, err := c.GetSummary(ctx, "r1")
			return err
		}},
		{"ai summary", "POST", "/ai/summary", "", func(c *Client) error {
			_, err := c.Summarize(ctx, &models.SummaryRequest{ReviewID: "r1"})
			return err
		}},
		{"missing", "POST", "/ai/summary/missing", "", func(c *Client) error {
			_, err := c.SummarizeMissing(ctx, &models.BatchRequest{StoreID: "s1"})
			return err
		}},
		{"batch", "POST", "/ai/summary/batch", "", func(c *Client) error {
			_, err := c.SummarizeBatch(ctx, &models.BatchRequest{StoreID: "s1"})
			return err
		}},
		{"ai reply", "POST", "/ai/reply", "", func(c *Client) error {
			_, err := c.GenerateReply(ctx, &models.ReplyRequest{ReviewID: "r1"})
			return err
		}},
		{"get reply", "GET", "/reply/r1", "", func(c *Client) error {
			_, err := c.GetReply(ctx, "r1")
			return err
		}},
		{"save reply", "POST", "/reply", "", func(c *Client) error {
			_, err := c.SaveReply(ctx, &models.Reply{ReviewID: "r1"})
			return err
		}},
		{"user insight", "GET", "/insight/u1", "", func(c *Client) error {
			_, err := c.UserInsight(ctx, "u1")
			return err
		}},
		{"report", "POST", "/ai/insight/report", "", func(c *Client) error {
			_, err := c.GenerateReport(ctx, &models.ReportRequest{StoreID: "s1"})
			return err
		}},
		{"credits", "POST", "/billing/credits", "", func(c *Client) error {
			_, err := c.PurchaseCredits(ctx, &models.CreditPurchaseRequest{Credits: 10})
			return err
		}},
		{"ad reward", "POST", "/billing/ad-reward", "", func(c *Client) error {
			_, err := c.AdReward(ctx, &models.AdRewardRequest{})
			return err
		}},
		{"subscribe", "POST", "/billing/subscribe-store", "", func(c *Client) error {
			_, err := c.SubscribeStore(ctx, &models.SubscribeStoreRequest{StoreID: "s1"})
			return err
		}},
		{"crawl naver", "POST", "/crawler/naver", "", func(c *Client) error {
			_, err := c.Crawl(ctx, models.ChannelNaver, &models.CrawlRequest{StoreID: "s1"})
			return err
		}},
		{"crawl google", "POST", "/crawler/google", "", func(c *Client) error {
			_, err := c.Crawl(ctx, models.ChannelGoogle, &models.CrawlRequest{StoreID: "s1"})
			return err
		}},
	}

	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tc.method || r.URL.Path != tc.path {
					t.Errorf("expected %s %s, got %s %s", tc.method, tc.path, r.Method, r.URL.Path)
				}
				if r.URL.RawQuery != tc.query {
					t.Errorf("expected query %q, got %q", tc.query, r.URL.RawQuery)
				}
				if r.Method == http.MethodPost && r.Header.Get("Content-Type") != "application/json" {
					t.Error("expected JSON content type on POST")
				}
				io.WriteString(w, `{"token":"t","user":{"id":"u1"}}`)
			}))
			defer server.Close()

			if err := tc.run(New(server.URL)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCrawl_UnsupportedChannel(t *testing.T) {
	if _, err := New("http://unused").Crawl(context.Background(), "yelp", &models.CrawlRequest{}); err == nil {
		t.Error("expected error for unsupported channel")
	}
}

func TestKind_MessagesAreDistinct(t *testing.T) {
	seen := map[string]Kind{}
	for k := KindUnknown; k <= KindTimeout; k++ {
		msg := k.Message()
		if prev, ok := seen[msg]; ok {
			t.Errorf("kinds %s and %s share message %q", prev, k, msg)
		}
		seen[msg] = k
	}
}
