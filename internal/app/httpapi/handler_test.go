package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/openquill/platform/internal/app"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{JWTSecret: "test-secret"}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	return newServerFor(t, application)
}

func newServerFor(t *testing.T, application *app.Application) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(application, nil))
	t.Cleanup(srv.Close)
	return srv
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c *apiClient) do(method, path string, body interface{}) (*http.Response, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (c *apiClient) doJSON(method, path string, body interface{}, wantStatus int, dst interface{}) {
	c.t.Helper()
	resp, raw := c.do(method, path, body)
	if resp.StatusCode != wantStatus {
		c.t.Fatalf("%s %s: status %d want %d (body %s)", method, path, resp.StatusCode, wantStatus, raw)
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			c.t.Fatalf("%s %s: decode response: %v (body %s)", method, path, err, raw)
		}
	}
}

func signup(t *testing.T, base, username string) *apiClient {
	t.Helper()
	c := &apiClient{t: t, base: base}
	var creds struct {
		Token string `json:"token"`
		User  struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	c.doJSON(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": "correct horse battery",
	}, http.StatusCreated, &creds)
	if creds.Token == "" {
		t.Fatal("signup returned no token")
	}
	c.token = creds.Token
	return c
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	c := &apiClient{t: t, base: srv.URL}

	var body map[string]string
	c.doJSON(http.MethodGet, "/healthz", nil, http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Fatalf("health body: %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	c := &apiClient{t: t, base: srv.URL}

	resp, _ := c.do(http.MethodPost, "/api/articles", map[string]string{"title": "t", "content": "c"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: status %d want 401", resp.StatusCode)
	}

	c.token = "garbage"
	resp, _ = c.do(http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d want 401", resp.StatusCode)
	}
}

func TestArticleLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")
	reader := signup(t, srv.URL, "reader")

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "How We Fund Journalism",
		"content": "long form content about funding",
	}, http.StatusCreated, &created)
	if created.Status != "draft" {
		t.Fatalf("new article status: %q", created.Status)
	}

	// Drafts are invisible in the published listing.
	var listed []json.RawMessage
	reader.doJSON(http.MethodGet, "/api/articles", nil, http.StatusOK, &listed)
	if len(listed) != 0 {
		t.Fatalf("draft leaked into listing: %d items", len(listed))
	}

	// Only the author can publish.
	resp, _ := reader.do(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign publish: status %d want 403", resp.StatusCode)
	}
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	reader.doJSON(http.MethodGet, "/api/articles", nil, http.StatusOK, &listed)
	if len(listed) != 1 {
		t.Fatalf("published listing: %d items want 1", len(listed))
	}

	var found []json.RawMessage
	reader.doJSON(http.MethodGet, "/api/articles/search?q=journalism", nil, http.StatusOK, &found)
	if len(found) != 1 {
		t.Fatalf("search results: %d want 1", len(found))
	}
}

func TestClapFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")
	reader := signup(t, srv.URL, "reader")

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
	}, http.StatusCreated, &created)
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	resp, _ := reader.do(http.MethodPost, "/api/articles/"+created.ID+"/clap", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clap: status %d want 204", resp.StatusCode)
	}
	resp, raw := reader.do(http.MethodPost, "/api/articles/"+created.ID+"/clap", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate clap: status %d want 409 (body %s)", resp.StatusCode, raw)
	}

	var status map[string]bool
	reader.doJSON(http.MethodGet, "/api/articles/"+created.ID+"/clap", nil, http.StatusOK, &status)
	if !status["clapped"] {
		t.Fatal("clap status not reflected")
	}

	var article struct {
		ClapsCount int `json:"clapsCount"`
	}
	reader.doJSON(http.MethodGet, "/api/articles/"+created.ID, nil, http.StatusOK, &article)
	if article.ClapsCount != 1 {
		t.Fatalf("claps count: got %d want 1", article.ClapsCount)
	}
}

func TestCommentThreadOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")
	reader := signup(t, srv.URL, "reader")

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
	}, http.StatusCreated, &created)
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	var root struct {
		ID string `json:"id"`
	}
	reader.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/comments", map[string]string{
		"content": "great piece",
	}, http.StatusCreated, &root)

	reader.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/comments", map[string]string{
		"content":  "agreed",
		"parentId": root.ID,
	}, http.StatusCreated, nil)

	var forest []struct {
		Comment struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"comment"`
		Replies []struct {
			Comment struct {
				Content string `json:"content"`
			} `json:"comment"`
		} `json:"replies"`
	}
	reader.doJSON(http.MethodGet, "/api/articles/"+created.ID+"/comments", nil, http.StatusOK, &forest)
	if len(forest) != 1 {
		t.Fatalf("thread roots: got %d want 1", len(forest))
	}
	if forest[0].Comment.ID != root.ID {
		t.Fatalf("root id: got %s want %s", forest[0].Comment.ID, root.ID)
	}
	if len(forest[0].Replies) != 1 || forest[0].Replies[0].Comment.Content != "agreed" {
		t.Fatalf("replies: got %+v", forest[0].Replies)
	}
}

func TestFollowAndProfileOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	writer := signup(t, srv.URL, "writer")
	fan := signup(t, srv.URL, "fan")

	var me struct {
		ID string `json:"id"`
	}
	writer.doJSON(http.MethodGet, "/api/me", nil, http.StatusOK, &me)

	resp, _ := fan.do(http.MethodPost, "/api/users/"+me.ID+"/follow", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("follow: status %d want 204", resp.StatusCode)
	}

	var profile struct {
		FollowersCount int `json:"followersCount"`
	}
	fan.doJSON(http.MethodGet, "/api/users/writer", nil, http.StatusOK, &profile)
	if profile.FollowersCount != 1 {
		t.Fatalf("followers count: got %d want 1", profile.FollowersCount)
	}

	// Self-follow is rejected.
	resp, _ = writer.do(http.MethodPost, "/api/users/"+me.ID+"/follow", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self follow: status %d want 400", resp.StatusCode)
	}
}

func TestBookmarksOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")
	reader := signup(t, srv.URL, "reader")

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
	}, http.StatusCreated, &created)
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	resp, _ := reader.do(http.MethodPost, "/api/articles/"+created.ID+"/bookmark", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("bookmark: status %d want 204", resp.StatusCode)
	}

	var list []struct {
		ID string `json:"id"`
	}
	reader.doJSON(http.MethodGet, "/api/me/bookmarks", nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("reading list: got %+v", list)
	}
}

func TestDonationWebhookOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	c := &apiClient{t: t, base: srv.URL}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	c.doJSON(http.MethodPost, "/api/donations", map[string]interface{}{
		"amount":     2500,
		"donorEmail": "supporter@example.com",
	}, http.StatusCreated, &created)
	if created.Status != "pending" {
		t.Fatalf("donation status: %q", created.Status)
	}

	var settled struct {
		Status string `json:"status"`
	}
	c.doJSON(http.MethodPost, "/api/donations/webhook", map[string]string{
		"donationId":      created.ID,
		"status":          "completed",
		"paymentIntentId": "pi_123",
	}, http.StatusOK, &settled)
	if settled.Status != "completed" {
		t.Fatalf("settled status: %q", settled.Status)
	}

	// Replayed webhooks do not flip the status again.
	resp, _ := c.do(http.MethodPost, "/api/donations/webhook", map[string]string{
		"donationId":      created.ID,
		"status":          "failed",
		"paymentIntentId": "pi_123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replayed webhook: status %d want 409", resp.StatusCode)
	}

	var fetched struct {
		Status string `json:"status"`
	}
	c.doJSON(http.MethodGet, "/api/donations/"+created.ID, nil, http.StatusOK, &fetched)
	if fetched.Status != "completed" {
		t.Fatalf("fetched status: %q", fetched.Status)
	}
}

func TestTagsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
	}, http.StatusCreated, &created)

	var tagged struct {
		Name string `json:"name"`
	}
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/tags", map[string]string{
		"name": "Nonprofit",
	}, http.StatusCreated, &tagged)
	if tagged.Name != "nonprofit" {
		t.Fatalf("tag name: got %q", tagged.Name)
	}

	var popular []struct {
		Name string `json:"name"`
	}
	author.doJSON(http.MethodGet, "/api/tags/popular", nil, http.StatusOK, &popular)
	if len(popular) != 1 || popular[0].Name != "nonprofit" {
		t.Fatalf("popular tags: got %+v", popular)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	c := signup(t, srv.URL, "leaver")

	resp, _ := c.do(http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: status %d want 204", resp.StatusCode)
	}
	resp, _ = c.do(http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token: status %d want 401", resp.StatusCode)
	}
}

func TestAuditTrailRecordsWrites(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")

	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
	}, http.StatusCreated, nil)

	var entries []struct {
		User   string `json:"user"`
		Path   string `json:"path"`
		Method string `json:"method"`
		Status int    `json:"status"`
	}
	author.doJSON(http.MethodGet, "/api/admin/audit", nil, http.StatusOK, &entries)
	if len(entries) == 0 {
		t.Fatal("audit trail is empty")
	}

	var found bool
	for _, e := range entries {
		if e.Method == http.MethodPost && e.Path == "/api/articles" && e.Status == http.StatusCreated {
			found = true
			if e.User == "" {
				t.Fatal("audit entry missing user")
			}
		}
	}
	if !found {
		t.Fatalf("article creation not audited: %+v", entries)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := signup(t, srv.URL, "operator")

	var out map[string]int64
	c.doJSON(http.MethodPost, "/api/admin/reconcile", nil, http.StatusOK, &out)
	if out["corrected"] != 0 {
		t.Fatalf("corrected on clean store: got %d want 0", out["corrected"])
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv := newTestServer(t)
	c := signup(t, srv.URL, "strict")

	resp, raw := c.do(http.MethodPost, "/api/articles", map[string]string{
		"title":   "T",
		"content": "body",
		"bogus":   "field",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d want 400 (body %s)", resp.StatusCode, raw)
	}
}

func TestProfileArticlesHideUnpublished(t *testing.T) {
	srv := newTestServer(t)
	writer := signup(t, srv.URL, "writer")
	anon := &apiClient{t: t, base: srv.URL}

	var draft, public struct {
		ID string `json:"id"`
	}
	writer.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "Unfinished Thoughts",
		"content": "still being written",
	}, http.StatusCreated, &draft)
	writer.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "Finished Essay",
		"content": "ready for readers",
	}, http.StatusCreated, &public)
	writer.doJSON(http.MethodPost, "/api/articles/"+public.ID+"/publish", nil, http.StatusOK, nil)

	var listed []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	anon.doJSON(http.MethodGet, "/api/users/writer/articles", nil, http.StatusOK, &listed)
	if len(listed) != 1 {
		t.Fatalf("profile articles: %d items want 1", len(listed))
	}
	if listed[0].ID != public.ID || listed[0].Status != "published" {
		t.Fatalf("profile listing exposed %s (%s)", listed[0].ID, listed[0].Status)
	}
}

func TestSearchMountedAtTopLevel(t *testing.T) {
	srv := newTestServer(t)
	author := signup(t, srv.URL, "author")
	anon := &apiClient{t: t, base: srv.URL}

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "Reader Funded Newsrooms",
		"content": "a survey of membership models",
	}, http.StatusCreated, &created)
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	var found []struct {
		ID string `json:"id"`
	}
	anon.doJSON(http.MethodGet, "/api/search?q=newsrooms", nil, http.StatusOK, &found)
	if len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("search results: got %d", len(found))
	}

	resp, _ := anon.do(http.MethodGet, "/api/search", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty query: status %d want 400", resp.StatusCode)
	}
}
