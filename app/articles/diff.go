package articles

// relationsEqual compares two relation sets of one kind by derived entity ID.
// A nil set and an empty set are the same thing: feeds routinely omit a
// relation block one fetch and emit an empty one the next, and treating those
// as a change would rewrite join rows on every cycle. The same rule is used
// for new/existing classification, so the two paths can never disagree.
func relationsEqual[T Related](parsed, current []T) bool {
	if len(parsed) != len(current) {
		return false
	}
	if len(parsed) == 0 {
		return true
	}
	ids := make(map[string]struct{}, len(current))
	for _, rel := range current {
		ids[rel.RelatedID()] = struct{}{}
	}
	for _, rel := range parsed {
		if _, ok := ids[rel.RelatedID()]; !ok {
			return false
		}
	}
	return true
}

// diffRelations applies a parsed relation set of one kind to an article.
// When the sets differ the article is updated in place and the updated set
// is reported as changed; an equal set leaves the article untouched and
// issues no write.
func diffRelations[T Related](article *Article, parsed []T, get func(*Article) []T, set func(*Article, []T)) bool {
	if relationsEqual(parsed, get(article)) {
		return false
	}
	set(article, parsed)
	return true
}
