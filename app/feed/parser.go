package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"

	"feedbase/app/articles"
)

// Parser turns raw feed bytes into parsed items keyed by articleID, ready for
// a merge cycle.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses one fetched feed document. Items sharing an articleID collapse
// onto one map entry, last one wins.
func (p *Parser) Run(feedID string, data []byte) (*Metadata, map[string]articles.ParsedItem, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    normalizeLanguage(parsed.Language),
	}
	if parsed.Image != nil {
		metadata.ImageURL = parsed.Image.URL
	}
	if parsed.PublishedParsed != nil {
		metadata.FeedPublishedAt = parsed.PublishedParsed
	}

	items := make(map[string]articles.ParsedItem, len(parsed.Items))
	for _, item := range parsed.Items {
		normalized := p.normalizeItem(feedID, item)
		items[normalized.ArticleID] = normalized
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(feedID string, item *gofeed.Item) articles.ParsedItem {
	guid := cmp.Or(item.GUID, item.Link)

	normalized := articles.ParsedItem{
		ArticleID: articles.MakeArticleID(feedID, guid),
		FeedID:    feedID,
		GUID:      guid,
		Title:     item.Title,
		Link:      item.Link,
		Summary:   item.Description,
		Content:   item.Content,
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	}

	normalized.Authors = extractAuthors(item)
	normalized.Tags = extractTags(item)
	normalized.Attachments = extractAttachments(item)

	return normalized
}

func extractAuthors(item *gofeed.Item) []articles.Author {
	raw := item.Authors
	if len(raw) == 0 && item.Author != nil {
		raw = []*gofeed.Person{item.Author}
	}

	var authors []articles.Author
	seen := make(map[string]struct{})
	for _, person := range raw {
		if person == nil {
			continue
		}
		name := strings.TrimSpace(person.Name)
		email := strings.TrimSpace(person.Email)
		if name == "" && email == "" {
			continue
		}
		author := articles.NewAuthor(name, email, "")
		if _, ok := seen[author.AuthorID]; ok {
			continue
		}
		seen[author.AuthorID] = struct{}{}
		authors = append(authors, author)
	}
	return authors
}

func extractTags(item *gofeed.Item) []articles.Tag {
	var tags []articles.Tag
	seen := make(map[string]struct{})
	for _, category := range item.Categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		tags = append(tags, articles.Tag(category))
	}
	return tags
}

func extractAttachments(item *gofeed.Item) []articles.Attachment {
	var attachments []articles.Attachment
	seen := make(map[string]struct{})
	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		var length int64
		if enclosure.Length != "" {
			if parsed, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				length = parsed
			}
		}
		attachment := articles.NewAttachment(enclosure.URL, enclosure.Type, length)
		if _, ok := seen[attachment.AttachmentID]; ok {
			continue
		}
		seen[attachment.AttachmentID] = struct{}{}
		attachments = append(attachments, attachment)
	}
	return attachments
}

// normalizeLanguage canonicalizes a feed's language tag ("EN-us" → "en-US").
// Unparseable tags pass through unchanged.
func normalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}
