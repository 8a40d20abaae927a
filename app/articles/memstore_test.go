package articles

import (
	"sort"
	"sync"
	"time"
)

// In-memory storage collaborators for service tests. The fake queue runs
// jobs inline, so every test observes storage state deterministically once a
// completion has fired.

type memQueue struct {
	mu       sync.Mutex
	jobNames []string
}

func (q *memQueue) Async(name string, run func() error, completion func(error)) {
	q.mu.Lock()
	q.jobNames = append(q.jobNames, name)
	q.mu.Unlock()
	err := run()
	if completion != nil {
		completion(err)
	}
}

func (q *memQueue) Sync(name string, run func() error) error {
	var result error
	q.Async(name, run, func(err error) {
		result = err
	})
	return result
}

func (q *memQueue) jobCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobNames)
}

type memArticleStore struct {
	mu       sync.Mutex
	rows     map[string]Article // keyed by articleID, relation sets not stored here
	statuses *memStatusStore
	inserts  int
}

func newMemArticleStore(statuses *memStatusStore) *memArticleStore {
	return &memArticleStore{
		rows:     make(map[string]Article),
		statuses: statuses,
	}
}

func (s *memArticleStore) InsertArticles(arts []Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	for _, a := range arts {
		if _, ok := s.rows[a.ArticleID]; ok {
			continue // insert-or-ignore
		}
		row := a
		row.Authors = nil
		row.Tags = nil
		row.Attachments = nil
		row.Status = nil
		s.rows[a.ArticleID] = row
	}
	return nil
}

func (s *memArticleStore) FetchArticles(feedID string, displayCutoff *time.Time) ([]*Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*Article
	for id, row := range s.rows {
		if row.FeedID != feedID {
			continue
		}
		status, ok := s.statuses.get(id)
		if !ok {
			continue
		}
		if displayCutoff != nil {
			if status.UserDeleted || (!status.Starred && !status.DateArrived.After(*displayCutoff)) {
				continue
			}
		}
		fresh := row
		fresh.Status = &status
		result = append(result, &fresh)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ArticleID < result[j].ArticleID })
	return result, nil
}

func (s *memArticleStore) FetchUnreadArticles(feedIDs []string, displayCutoff time.Time) ([]*Article, error) {
	var result []*Article
	for _, feedID := range feedIDs {
		arts, _ := s.FetchArticles(feedID, &displayCutoff)
		for _, a := range arts {
			if !a.Status.Read {
				result = append(result, a)
			}
		}
	}
	return result, nil
}

func (s *memArticleStore) UnreadCounts(feedIDs []string, displayCutoff time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(feedIDs))
	for _, feedID := range feedIDs {
		arts, _ := s.FetchArticles(feedID, &displayCutoff)
		counts[feedID] = 0
		for _, a := range arts {
			if !a.Status.Read {
				counts[feedID]++
			}
		}
	}
	return counts, nil
}

func (s *memArticleStore) CountArticles() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

func (s *memArticleStore) PurgeArticles(retentionCutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id := range s.rows {
		status, ok := s.statuses.get(id)
		if !ok {
			continue
		}
		if status.UserDeleted || (!status.Starred && !status.DateArrived.After(retentionCutoff)) {
			delete(s.rows, id)
			purged++
		}
	}
	return purged, nil
}

func (s *memArticleStore) ArticlesNeedingContent(feedID string, limit int) ([]ContentCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []ContentCandidate
	for id, row := range s.rows {
		if row.FeedID != feedID || row.Content != "" || row.Link == "" {
			continue
		}
		candidates = append(candidates, ContentCandidate{ArticleID: id, Link: row.Link})
		if len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

func (s *memArticleStore) UpdateContent(articleID, content string, extractedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[articleID]
	if !ok {
		return nil
	}
	row.Content = content
	s.rows[articleID] = row
	return nil
}

type memStatusStore struct {
	mu       sync.Mutex
	rows     map[string]Status
	fetches  int
	ensures  int
	markings int
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{rows: make(map[string]Status)}
}

func (s *memStatusStore) get(articleID string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.rows[articleID]
	return status, ok
}

func (s *memStatusStore) put(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[status.ArticleID] = status
}

func (s *memStatusStore) EnsureStatuses(statuses []Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensures++
	for _, status := range statuses {
		if _, ok := s.rows[status.ArticleID]; ok {
			continue
		}
		s.rows[status.ArticleID] = status
	}
	return nil
}

func (s *memStatusStore) FetchStatuses(articleIDs []string) (map[string]Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	result := make(map[string]Status)
	for _, id := range articleIDs {
		if status, ok := s.rows[id]; ok {
			result[id] = status
		}
	}
	return result, nil
}

func (s *memStatusStore) MarkFlags(articleIDs []string, flag Flag, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markings++
	for _, id := range articleIDs {
		status, ok := s.rows[id]
		if !ok {
			continue
		}
		status.SetFlag(flag, value)
		s.rows[id] = status
	}
	return nil
}

type memRelationStore[T Related] struct {
	mu        sync.Mutex
	relations map[string][]T
	get       func(*Article) []T
	set       func(*Article, []T)
	saves     int
}

func newMemRelationStore[T Related](get func(*Article) []T, set func(*Article, []T)) *memRelationStore[T] {
	return &memRelationStore[T]{
		relations: make(map[string][]T),
		get:       get,
		set:       set,
	}
}

func (s *memRelationStore[T]) AttachRelatedObjects(arts []*Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range arts {
		s.set(a, append([]T(nil), s.relations[a.ArticleID]...))
	}
	return nil
}

func (s *memRelationStore[T]) SaveRelatedObjects(arts []Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	for i := range arts {
		s.relations[arts[i].ArticleID] = append([]T(nil), s.get(&arts[i])...)
	}
	return nil
}

func (s *memRelationStore[T]) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type testBackend struct {
	queue       *memQueue
	articles    *memArticleStore
	statuses    *memStatusStore
	authors     *memRelationStore[Author]
	tags        *memRelationStore[Tag]
	attachments *memRelationStore[Attachment]
	service     *Service
}

func newTestBackend() *testBackend {
	statuses := newMemStatusStore()
	backend := &testBackend{
		queue:    &memQueue{},
		articles: newMemArticleStore(statuses),
		statuses: statuses,
		authors: newMemRelationStore(
			func(a *Article) []Author { return a.Authors },
			func(a *Article, rels []Author) { a.Authors = rels }),
		tags: newMemRelationStore(
			func(a *Article) []Tag { return a.Tags },
			func(a *Article, rels []Tag) { a.Tags = rels }),
		attachments: newMemRelationStore(
			func(a *Article) []Attachment { return a.Attachments },
			func(a *Article, rels []Attachment) { a.Attachments = rels }),
	}

	account := &Account{ID: "test", Name: "Test"}
	policy := NewVisibilityPolicy(30, 90)
	backend.service = NewService(account, Stores{
		Articles:    backend.articles,
		Statuses:    backend.statuses,
		Authors:     backend.authors,
		Tags:        backend.tags,
		Attachments: backend.attachments,
	}, backend.queue, policy)
	backend.service.Start()
	return backend
}

// seedArticle installs a stored article with its status and relation sets,
// as if a previous merge cycle had written it.
func (b *testBackend) seedArticle(a Article) {
	status := *a.Status
	b.statuses.put(status)
	b.authors.relations[a.ArticleID] = append([]Author(nil), a.Authors...)
	b.tags.relations[a.ArticleID] = append([]Tag(nil), a.Tags...)
	b.attachments.relations[a.ArticleID] = append([]Attachment(nil), a.Attachments...)
	row := a
	row.Status = nil
	b.articles.mu.Lock()
	b.articles.rows[a.ArticleID] = row
	b.articles.mu.Unlock()
}

// updateAndWait drives one merge cycle to completion.
func (b *testBackend) updateAndWait(feedID string, items map[string]ParsedItem) {
	done := make(chan struct{})
	b.service.Update(feedID, items, func() {
		close(done)
	})
	<-done
}
