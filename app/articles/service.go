package articles

import (
	"fmt"
	"sync"
	"time"
)

// Account is the owning registry handle for a set of feeds. The service
// cannot run ownerless.
type Account struct {
	ID   string
	Name string
}

// Stores bundles the storage collaborators consumed by the service.
type Stores struct {
	Articles    ArticleStore
	Statuses    StatusStore
	Authors     RelationStore[Author]
	Tags        RelationStore[Tag]
	Attachments RelationStore[Attachment]
}

// Service is the article engine's produced interface: fetches, unread
// counts, flag marking and the merge trigger. All identity-cache and Article
// mutation happens on a single coordinating goroutine owned by the service;
// public methods post closures onto it, so they are safe to call from any
// goroutine. Storage I/O runs on the StorageQueue's worker goroutine, and
// only immutable snapshots ever cross between the two.
//
// The synchronous methods stall their caller for the full storage round
// trip; use them only when correctness requires fresh data before
// proceeding. They must not be called from completion callbacks, which run
// on the coordinating goroutine.
type Service struct {
	account *Account
	stores  Stores
	queue   StorageQueue
	policy  *VisibilityPolicy
	cache   *IdentityCache

	loop chan func()
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewService(account *Account, stores Stores, queue StorageQueue, policy *VisibilityPolicy) *Service {
	if account == nil {
		panic("articles: service requires an owning account")
	}
	if stores.Articles == nil || stores.Statuses == nil ||
		stores.Authors == nil || stores.Tags == nil || stores.Attachments == nil {
		panic("articles: service requires all storage collaborators")
	}
	if queue == nil || policy == nil {
		panic("articles: service requires a storage queue and a visibility policy")
	}
	return &Service{
		account: account,
		stores:  stores,
		queue:   queue,
		policy:  policy,
		cache:   NewIdentityCache(),
		loop:    make(chan func(), 128),
	}
}

func (s *Service) Account() *Account {
	return s.account
}

// Start launches the coordinating goroutine.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for fn := range s.loop {
			fn()
		}
	}()
}

// Stop drains the coordinating loop. Already-posted work still runs; work
// arriving afterwards is dropped, so storage completions landing during a
// worker drain cannot hit a closed channel.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.loop)
	s.mu.Unlock()
	s.wg.Wait()
}

// post schedules fn on the coordinating goroutine and returns immediately.
// After Stop the closure is silently dropped.
func (s *Service) post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.loop <- fn
}

// run executes fn on the coordinating goroutine and waits for it. After Stop
// it returns immediately without running fn.
func (s *Service) run(fn func()) {
	done := make(chan struct{})
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.loop <- func() {
		defer close(done)
		fn()
	}
	s.mu.Unlock()
	<-done
}

// FetchArticles returns the displayed articles for a feed, uniqued through
// the identity cache. Synchronous.
func (s *Service) FetchArticles(feedID string) ([]*Article, error) {
	var result []*Article
	var err error
	s.run(func() {
		cutoff := s.policy.DisplayCutoff()
		var fetched []*Article
		err = s.queue.Sync("fetch articles", func() error {
			var qerr error
			fetched, qerr = s.fetchFeed(feedID, &cutoff)
			return qerr
		})
		if err != nil {
			return
		}
		result = s.cache.Uniqued(fetched)
	})
	return result, err
}

// FetchArticlesAsync delivers the articles for a feed via completion,
// invoked on the coordinating goroutine. withLimits=false bypasses the
// display window; the merge path depends on that to see currently-hidden
// articles and avoid re-creating them as new.
func (s *Service) FetchArticlesAsync(feedID string, withLimits bool, completion func([]*Article, error)) {
	s.post(func() {
		var cutoff *time.Time
		if withLimits {
			c := s.policy.DisplayCutoff()
			cutoff = &c
		}
		var fetched []*Article
		s.queue.Async("fetch articles", func() error {
			var err error
			fetched, err = s.fetchFeed(feedID, cutoff)
			return err
		}, func(err error) {
			s.post(func() {
				if err != nil {
					completion(nil, err)
					return
				}
				completion(s.cache.Uniqued(fetched), nil)
			})
		})
	})
}

// FetchUnreadArticles returns the unread displayed articles across feeds.
// Synchronous.
func (s *Service) FetchUnreadArticles(feedIDs []string) ([]*Article, error) {
	var result []*Article
	var err error
	s.run(func() {
		cutoff := s.policy.DisplayCutoff()
		var fetched []*Article
		err = s.queue.Sync("fetch unread articles", func() error {
			var qerr error
			fetched, qerr = s.stores.Articles.FetchUnreadArticles(feedIDs, cutoff)
			if qerr != nil {
				return qerr
			}
			return s.attachRelations(fetched)
		})
		if err != nil {
			return
		}
		result = s.cache.Uniqued(fetched)
	})
	return result, err
}

// FetchUnreadCounts delivers per-feed unread counts via completion, invoked
// on the coordinating goroutine. Counting uses the same display predicate as
// a display fetch.
func (s *Service) FetchUnreadCounts(feedIDs []string, completion func(map[string]int, error)) {
	s.post(func() {
		cutoff := s.policy.DisplayCutoff()
		var counts map[string]int
		s.queue.Async("fetch unread counts", func() error {
			var err error
			counts, err = s.stores.Articles.UnreadCounts(feedIDs, cutoff)
			return err
		}, func(err error) {
			s.post(func() {
				completion(counts, err)
			})
		})
	})
}

// Mark sets a status flag on the given articles. Articles already at the
// target value are skipped; if none need a change, no storage call is made
// at all. In-memory state is updated before this method returns, the storage
// write is queued.
func (s *Service) Mark(arts []*Article, flag Flag, value bool) {
	if !flag.Valid() {
		panic(fmt.Sprintf("articles: unknown flag %q", flag))
	}
	s.run(func() {
		s.markInstances(arts, flag, value)
	})
}

// markInstances runs on the coordinating goroutine.
func (s *Service) markInstances(arts []*Article, flag Flag, value bool) {
	var changed []string
	for _, a := range arts {
		if a.Status == nil {
			panic(fmt.Sprintf("articles: marking article %q without status", a.ArticleID))
		}
		if a.Status.Flag(flag) == value {
			continue
		}
		a.Status.SetFlag(flag, value)
		changed = append(changed, a.ArticleID)
	}
	if len(changed) == 0 {
		return
	}
	s.queue.Async("mark "+string(flag), func() error {
		return s.stores.Statuses.MarkFlags(changed, flag, value)
	}, nil)
}

// MarkByIDs sets a status flag by articleID. IDs live in the identity cache
// go through the in-memory path; the rest are resolved against stored
// statuses on the worker, still skipping rows already at the target value.
func (s *Service) MarkByIDs(articleIDs []string, flag Flag, value bool) error {
	if !flag.Valid() {
		return fmt.Errorf("unknown flag %q", flag)
	}
	s.run(func() {
		var live []*Article
		var unknown []string
		for _, id := range articleIDs {
			if a := s.cache.Get(id); a != nil {
				live = append(live, a)
			} else {
				unknown = append(unknown, id)
			}
		}
		s.markInstances(live, flag, value)
		if len(unknown) == 0 {
			return
		}
		s.queue.Async("mark "+string(flag)+" by id", func() error {
			statuses, err := s.stores.Statuses.FetchStatuses(unknown)
			if err != nil {
				return err
			}
			var changed []string
			for id, status := range statuses {
				if status.Flag(flag) != value {
					changed = append(changed, id)
				}
			}
			if len(changed) == 0 {
				return nil
			}
			return s.stores.Statuses.MarkFlags(changed, flag, value)
		}, nil)
	})
	return nil
}

// PurgeOldArticles drops stored articles past the retention boundary. The
// optional completion is invoked on the coordinating goroutine.
func (s *Service) PurgeOldArticles(completion func(int64, error)) {
	s.post(func() {
		cutoff := s.policy.RetentionCutoff()
		var purged int64
		s.queue.Async("purge old articles", func() error {
			var err error
			purged, err = s.stores.Articles.PurgeArticles(cutoff)
			return err
		}, func(err error) {
			if completion == nil {
				return
			}
			s.post(func() {
				completion(purged, err)
			})
		})
	})
}

// ArticlesNeedingContent returns displayed articles whose full content has
// not been extracted yet. Synchronous.
func (s *Service) ArticlesNeedingContent(feedID string, limit int) ([]ContentCandidate, error) {
	var candidates []ContentCandidate
	err := s.queue.Sync("fetch extraction candidates", func() error {
		var qerr error
		candidates, qerr = s.stores.Articles.ArticlesNeedingContent(feedID, limit)
		return qerr
	})
	return candidates, err
}

// SaveExtractedContent stores readability-extracted content for an article,
// updating the live instance when one exists.
func (s *Service) SaveExtractedContent(articleID, content string) {
	s.post(func() {
		if a := s.cache.Get(articleID); a != nil {
			a.Content = content
		}
		extractedAt := time.Now()
		s.queue.Async("save extracted content", func() error {
			return s.stores.Articles.UpdateContent(articleID, content, extractedAt)
		}, nil)
	})
}

// CountArticles returns the total number of stored articles. Synchronous.
func (s *Service) CountArticles() (int, error) {
	var count int
	err := s.queue.Sync("count articles", func() error {
		var qerr error
		count, qerr = s.stores.Articles.CountArticles()
		return qerr
	})
	return count, err
}

// fetchFeed runs on the worker context: base rows plus relation sets.
func (s *Service) fetchFeed(feedID string, displayCutoff *time.Time) ([]*Article, error) {
	arts, err := s.stores.Articles.FetchArticles(feedID, displayCutoff)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(arts); err != nil {
		return nil, err
	}
	return arts, nil
}

func (s *Service) attachRelations(arts []*Article) error {
	if len(arts) == 0 {
		return nil
	}
	if err := s.stores.Authors.AttachRelatedObjects(arts); err != nil {
		return err
	}
	if err := s.stores.Tags.AttachRelatedObjects(arts); err != nil {
		return err
	}
	return s.stores.Attachments.AttachRelatedObjects(arts)
}
