package store

import (
	"sort"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "was": true, "my": true, "you": true,
	"your": true, "with": true, "this": true, "that": true, "not": true, "all": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// orderScore counts query tokens that match a token of the order's searchable text.
// A match is equality or a shared prefix of at least five letters.
func orderScore(o contractx.Order, query []string) int {
	if len(query) == 0 {
		return 0
	}
	doc := tokenize(strings.Join([]string{o.ProductName, o.SKU, o.Status, o.ShippingAddress.City, o.ShippingAddress.Country}, " "))

	score := 0
	for _, q := range query {
		for _, d := range doc {
			if q == d || commonPrefix(q, d) >= 5 {
				score++
				break
			}
		}
	}
	return score
}

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// rankOrders sorts orders by relevance to queryText, newest first on ties.
func rankOrders(orders []contractx.Order, queryText string) {
	query := tokenize(queryText)
	scores := make(map[string]int, len(orders))
	for _, o := range orders {
		scores[o.ID] = orderScore(o, query)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		si, sj := scores[orders[i].ID], scores[orders[j].ID]
		if si != sj {
			return si > sj
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
}
