package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feedbase/app/articles"
	"feedbase/app/feed"
	"feedbase/app/tasks"
)

// fakeService is a canned-response ArticleService for handler tests.
type fakeService struct {
	articles     map[string][]*articles.Article
	unreadCounts map[string]int
	total        int
	marked       [][]string
	markedFlag   articles.Flag
	markedValue  bool
}

func (f *fakeService) FetchArticles(feedID string) ([]*articles.Article, error) {
	return f.articles[feedID], nil
}

func (f *fakeService) FetchUnreadArticles(feedIDs []string) ([]*articles.Article, error) {
	var result []*articles.Article
	for _, id := range feedIDs {
		for _, a := range f.articles[id] {
			if !a.Status.Read {
				result = append(result, a)
			}
		}
	}
	return result, nil
}

func (f *fakeService) FetchUnreadCounts(feedIDs []string, completion func(map[string]int, error)) {
	completion(f.unreadCounts, nil)
}

func (f *fakeService) MarkByIDs(articleIDs []string, flag articles.Flag, value bool) error {
	f.marked = append(f.marked, articleIDs)
	f.markedFlag = flag
	f.markedValue = value
	return nil
}

func (f *fakeService) CountArticles() (int, error) {
	return f.total, nil
}

type fakeScheduler struct {
	enqueued []tasks.Task
	fail     bool
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}
func (f *fakeScheduler) EnqueueTask(task tasks.Task) error {
	if f.fail {
		return errors.New("task queue is full")
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

func testServer(t *testing.T, service *fakeService, scheduler *fakeScheduler, apiKey string) (*httptest.Server, *feed.ConfigCache) {
	t.Helper()

	dir := t.TempDir()
	content := "url: \"https://example.com/feed.xml\"\nsettings:\n  enabled: true\n  max_items: 2\n"
	if err := os.WriteFile(filepath.Join(dir, "test-feed.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cache := feed.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	newRefreshTask := func(config *feed.Config) tasks.Task {
		return tasks.NewRefreshFeedTask(config, &http.Client{}, feed.NewParser(), nil, cache, "test-agent")
	}
	handler := NewHandler(cache, service, scheduler, newRefreshTask)
	server := httptest.NewServer(NewServer(handler, apiKey))
	t.Cleanup(server.Close)
	return server, cache
}

func displayedArticle(guid string, read bool) *articles.Article {
	articleID := articles.MakeArticleID("test-feed", guid)
	return &articles.Article{
		ArticleID:   articleID,
		FeedID:      "test-feed",
		GUID:        guid,
		Title:       "Title " + guid,
		Link:        "https://example.com/" + guid,
		Tags:        []articles.Tag{"go"},
		PublishedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Status: &articles.Status{
			ArticleID:   articleID,
			Read:        read,
			DateArrived: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func getJSON(t *testing.T, url string, expectedStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		t.Fatalf("Expected status %d, got %d", expectedStatus, resp.StatusCode)
	}
	if expectedStatus != http.StatusOK {
		return nil
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestListFeeds(t *testing.T) {
	server, cache := testServer(t, &fakeService{}, &fakeScheduler{}, "")

	// Before the first refresh only the config fields are present.
	body := getJSON(t, server.URL+"/feeds", http.StatusOK)
	feeds, ok := body["feeds"].([]any)
	if !ok || len(feeds) != 1 {
		t.Fatalf("Expected 1 feed, got %v", body["feeds"])
	}
	entry, ok := feeds[0].(map[string]any)
	if !ok {
		t.Fatalf("Expected a feed object, got %T", feeds[0])
	}
	if entry["feed_id"] != "test-feed" || entry["url"] != "https://example.com/feed.xml" {
		t.Errorf("Unexpected feed entry: %v", entry)
	}
	if entry["enabled"] != true {
		t.Errorf("Expected an enabled feed, got %v", entry["enabled"])
	}
	if _, ok := entry["title"]; ok {
		t.Error("Expected no title before the first refresh")
	}

	// A refresh records parse-time metadata; the listing picks it up.
	cache.SetMetadata("test-feed", feed.Metadata{
		Title:    "Example Feed",
		Link:     "https://example.com",
		Language: "en-US",
	})
	body = getJSON(t, server.URL+"/feeds", http.StatusOK)
	entry = body["feeds"].([]any)[0].(map[string]any)
	if entry["title"] != "Example Feed" {
		t.Errorf("Expected title 'Example Feed', got %v", entry["title"])
	}
	if entry["language"] != "en-US" {
		t.Errorf("Expected language 'en-US', got %v", entry["language"])
	}
}

func TestGetFeedArticles(t *testing.T) {
	service := &fakeService{
		articles: map[string][]*articles.Article{
			"test-feed": {
				displayedArticle("one", false),
				displayedArticle("two", true),
				displayedArticle("three", false),
			},
		},
	}
	server, _ := testServer(t, service, &fakeScheduler{}, "")

	body := getJSON(t, server.URL+"/feeds/test-feed/articles", http.StatusOK)
	if body["feed_id"] != "test-feed" {
		t.Errorf("Expected feed_id 'test-feed', got %v", body["feed_id"])
	}
	arts, ok := body["articles"].([]any)
	if !ok {
		t.Fatalf("Expected an articles array, got %T", body["articles"])
	}
	// max_items: 2 truncates the response
	if len(arts) != 2 {
		t.Fatalf("Expected 2 articles after the max_items cap, got %d", len(arts))
	}

	first, ok := arts[0].(map[string]any)
	if !ok {
		t.Fatalf("Expected an article object, got %T", arts[0])
	}
	if first["title"] != "Title one" {
		t.Errorf("Expected title 'Title one', got %v", first["title"])
	}
	if tags, ok := first["tags"].([]any); !ok || len(tags) != 1 || tags[0] != "go" {
		t.Errorf("Expected tags [go], got %v", first["tags"])
	}
	if _, ok := first["date_arrived"]; !ok {
		t.Error("Expected a date_arrived field")
	}
}

func TestGetFeedArticlesUnknownFeed(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{}, "")
	getJSON(t, server.URL+"/feeds/unknown/articles", http.StatusNotFound)
}

func TestGetFeedUnreadArticles(t *testing.T) {
	service := &fakeService{
		articles: map[string][]*articles.Article{
			"test-feed": {
				displayedArticle("one", false),
				displayedArticle("two", true),
			},
		},
	}
	server, _ := testServer(t, service, &fakeScheduler{}, "")

	body := getJSON(t, server.URL+"/feeds/test-feed/unread", http.StatusOK)
	arts, ok := body["articles"].([]any)
	if !ok || len(arts) != 1 {
		t.Fatalf("Expected 1 unread article, got %v", body["articles"])
	}
}

func TestGetUnreadCounts(t *testing.T) {
	service := &fakeService{unreadCounts: map[string]int{"test-feed": 3}}
	server, _ := testServer(t, service, &fakeScheduler{}, "")

	body := getJSON(t, server.URL+"/unread-counts", http.StatusOK)
	counts, ok := body["unread_counts"].(map[string]any)
	if !ok {
		t.Fatalf("Expected an unread_counts object, got %T", body["unread_counts"])
	}
	if counts["test-feed"] != float64(3) {
		t.Errorf("Expected 3 unread, got %v", counts["test-feed"])
	}
}

func TestHealthCheck(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{}, "")

	body := getJSON(t, server.URL+"/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", body["status"])
	}
	if body["version"] == "" {
		t.Error("Expected a version")
	}
}

func TestGetStats(t *testing.T) {
	service := &fakeService{total: 42}
	server, _ := testServer(t, service, &fakeScheduler{}, "")

	body := getJSON(t, server.URL+"/stats", http.StatusOK)
	if body["articles"] != float64(42) {
		t.Errorf("Expected 42 articles, got %v", body["articles"])
	}
	if body["feeds"] != float64(1) {
		t.Errorf("Expected 1 feed, got %v", body["feeds"])
	}
}

func TestMarkArticlesRequiresAPIKey(t *testing.T) {
	service := &fakeService{}
	server, _ := testServer(t, service, &fakeScheduler{}, "secret")

	payload := `{"article_ids":["a","b"],"flag":"read","value":true}`

	// No key
	resp, err := http.Post(server.URL+"/api/articles/mark", "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a key, got %d", resp.StatusCode)
	}

	// Correct key
	req, _ := http.NewRequest("POST", server.URL+"/api/articles/mark", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with the key, got %d", resp.StatusCode)
	}

	if len(service.marked) != 1 || len(service.marked[0]) != 2 {
		t.Fatalf("Expected one mark call with 2 IDs, got %v", service.marked)
	}
	if service.markedFlag != articles.FlagRead || !service.markedValue {
		t.Errorf("Expected read=true, got %v=%v", service.markedFlag, service.markedValue)
	}
}

func TestMarkArticlesRejectsUnknownFlag(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{}, "secret")

	payload := `{"article_ids":["a"],"flag":"bogus","value":true}`
	req, _ := http.NewRequest("POST", server.URL+"/api/articles/mark", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown flag, got %d", resp.StatusCode)
	}
}

func TestMarkArticlesRejectsMalformedBody(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{}, "secret")

	req, _ := http.NewRequest("POST", server.URL+"/api/articles/mark", bytes.NewBufferString(`{"flag":"read"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing article_ids field, got %d", resp.StatusCode)
	}
}

func TestRefreshFeed(t *testing.T) {
	scheduler := &fakeScheduler{}
	server, _ := testServer(t, &fakeService{}, scheduler, "secret")

	req, _ := http.NewRequest("POST", server.URL+"/api/feeds/test-feed/refresh", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", resp.StatusCode)
	}
	if len(scheduler.enqueued) != 1 {
		t.Fatalf("Expected 1 enqueued task, got %d", len(scheduler.enqueued))
	}
	if scheduler.enqueued[0].Type() != tasks.TypeRefreshFeed {
		t.Errorf("Expected a refresh task, got %v", scheduler.enqueued[0].Type())
	}
}

func TestRefreshFeedQueueFull(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{fail: true}, "secret")

	req, _ := http.NewRequest("POST", server.URL+"/api/feeds/test-feed/refresh", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the queue is full, got %d", resp.StatusCode)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	server, _ := testServer(t, &fakeService{}, &fakeScheduler{}, "")

	resp, err := http.Post(server.URL+"/api/articles/mark", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 when the API is disabled, got %d", resp.StatusCode)
	}
}
