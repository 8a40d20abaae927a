package articles

import (
	"log/slog"
)

// Update reconciles freshly parsed items against stored state for one feed.
// It is the sole merge trigger, invoked once per feed per refresh. The
// completion fires exactly once, on the coordinating goroutine, after
// classification is finished and every storage operation for this cycle has
// been queued in order. It does not mean background writes have finished; a
// failed batch produces no state change and no separate error signal.
func (s *Service) Update(feedID string, items map[string]ParsedItem, completion func()) {
	s.post(func() {
		s.update(feedID, items, completion)
	})
}

// update runs on the coordinating goroutine.
func (s *Service) update(feedID string, items map[string]ParsedItem, completion func()) {
	if len(items) == 0 {
		if completion != nil {
			completion()
		}
		return
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}

	// One worker trip loads everything classification needs: statuses for
	// every incoming id, and the feed's articles without the display window
	// so currently-hidden articles are not re-created as new.
	var (
		statuses map[string]Status
		fetched  []*Article
	)
	s.queue.Async("load merge state", func() error {
		var err error
		statuses, err = s.stores.Statuses.FetchStatuses(ids)
		if err != nil {
			return err
		}
		fetched, err = s.fetchFeed(feedID, nil)
		return err
	}, func(err error) {
		s.post(func() {
			if err != nil {
				slog.Error("Merge aborted, could not load state", "feed", feedID, "error", err)
				if completion != nil {
					completion()
				}
				return
			}
			s.merge(feedID, items, statuses, fetched, completion)
		})
	})
}

// merge runs on the coordinating goroutine.
func (s *Service) merge(feedID string, items map[string]ParsedItem, statuses map[string]Status, fetched []*Article, completion func()) {
	// Completion is unconditional: it signals that classification is done and
	// writes are enqueued, never that they succeeded.
	defer func() {
		if completion != nil {
			completion()
		}
	}()

	existing := make(map[string]*Article, len(fetched))
	for _, a := range s.cache.Uniqued(fetched) {
		existing[a.ArticleID] = a
	}

	var newItems, updatedItems []ParsedItem
	ignored := 0
	for id, item := range items {
		if status, ok := statuses[id]; ok {
			// Items with no existing status cannot be judged ignorable yet.
			if s.policy.IsIgnorable(&status) {
				ignored++
				continue
			}
		} else if existing[id] == nil {
			newItems = append(newItems, item)
			continue
		}
		updatedItems = append(updatedItems, item)
	}

	if len(newItems) > 0 {
		s.saveNewArticles(newItems)
	}
	if len(updatedItems) > 0 {
		s.saveUpdatedArticles(updatedItems, existing)
	}

	slog.Debug("Merge cycle classified",
		"feed", feedID,
		"incoming", len(items),
		"ignored", ignored,
		"new", len(newItems),
		"existing", len(updatedItems))
}

// saveNewArticles runs on the coordinating goroutine. New articles get a
// default status (created-if-absent), an insert-or-ignore base row, and all
// three relation kinds persisted unconditionally, in one queued batch.
func (s *Service) saveNewArticles(items []ParsedItem) {
	defaults := make([]Status, 0, len(items))
	built := make([]*Article, 0, len(items))
	for _, item := range items {
		status := NewStatus(item.ArticleID, item.PublishedAt)
		defaults = append(defaults, status)
		built = append(built, NewArticle(item, &status))
	}

	live := s.cache.Uniqued(built)
	snapshots := make([]Article, 0, len(live))
	for _, a := range live {
		snapshots = append(snapshots, a.Snapshot())
	}

	s.queue.Async("save new articles", func() error {
		if err := s.stores.Statuses.EnsureStatuses(defaults); err != nil {
			return err
		}
		if err := s.stores.Articles.InsertArticles(snapshots); err != nil {
			return err
		}
		if err := s.stores.Authors.SaveRelatedObjects(snapshots); err != nil {
			return err
		}
		if err := s.stores.Tags.SaveRelatedObjects(snapshots); err != nil {
			return err
		}
		return s.stores.Attachments.SaveRelatedObjects(snapshots)
	}, nil)
}

// saveUpdatedArticles runs on the coordinating goroutine. Every item
// classified existing is diffed; a relation kind whose set actually changed
// updates the live article and joins that kind's change set. Only non-empty
// change sets issue a write, each in its own batch.
func (s *Service) saveUpdatedArticles(items []ParsedItem, existing map[string]*Article) {
	var authorChanges, tagChanges, attachmentChanges []Article
	for _, item := range items {
		article := existing[item.ArticleID]
		if article == nil {
			// Status survives but the row aged out of retention; nothing in
			// memory to diff against.
			continue
		}
		if diffRelations(article, item.Authors,
			func(a *Article) []Author { return a.Authors },
			func(a *Article, rels []Author) { a.Authors = rels }) {
			authorChanges = append(authorChanges, article.Snapshot())
		}
		if diffRelations(article, item.Tags,
			func(a *Article) []Tag { return a.Tags },
			func(a *Article, rels []Tag) { a.Tags = rels }) {
			tagChanges = append(tagChanges, article.Snapshot())
		}
		if diffRelations(article, item.Attachments,
			func(a *Article) []Attachment { return a.Attachments },
			func(a *Article, rels []Attachment) { a.Attachments = rels }) {
			attachmentChanges = append(attachmentChanges, article.Snapshot())
		}
	}

	if len(authorChanges) > 0 {
		s.queue.Async("save changed authors", func() error {
			return s.stores.Authors.SaveRelatedObjects(authorChanges)
		}, nil)
	}
	if len(tagChanges) > 0 {
		s.queue.Async("save changed tags", func() error {
			return s.stores.Tags.SaveRelatedObjects(tagChanges)
		}, nil)
	}
	if len(attachmentChanges) > 0 {
		s.queue.Async("save changed attachments", func() error {
			return s.stores.Attachments.SaveRelatedObjects(attachmentChanges)
		}, nil)
	}
}
