package listing

import (
	"cmp"
	"strings"

	"halisaha-bot/types"
)

type VenueSort string

const (
	SortNone       VenueSort = ""
	SortName       VenueSort = "name"
	SortPriceAsc   VenueSort = "price_asc"
	SortPriceDesc  VenueSort = "price_desc"
	SortRatingDesc VenueSort = "rating_desc"
)

// VenueCriteria are the venue list filters; zero values match everything.
type VenueCriteria struct {
	City      string
	District  string
	Search    string
	MaxPrice  float64
	MinRating float64
}

func (c VenueCriteria) predicates() []Predicate[types.Venue] {
	var preds []Predicate[types.Venue]
	if c.City != "" {
		preds = append(preds, func(v types.Venue) bool { return strings.EqualFold(v.City, c.City) })
	}
	if c.District != "" {
		preds = append(preds, func(v types.Venue) bool { return strings.EqualFold(v.District, c.District) })
	}
	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		preds = append(preds, func(v types.Venue) bool {
			return strings.Contains(strings.ToLower(v.Name), q) || strings.Contains(strings.ToLower(v.Address), q)
		})
	}
	if c.MaxPrice > 0 {
		preds = append(preds, func(v types.Venue) bool { return v.PricePerHour <= c.MaxPrice })
	}
	if c.MinRating > 0 {
		preds = append(preds, func(v types.Venue) bool { return v.AverageRating >= c.MinRating })
	}
	return preds
}

func (s VenueSort) compare() func(a, b types.Venue) int {
	switch s {
	case SortName:
		return func(a, b types.Venue) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case SortPriceAsc:
		return func(a, b types.Venue) int { return cmp.Compare(a.PricePerHour, b.PricePerHour) }
	case SortPriceDesc:
		return func(a, b types.Venue) int { return cmp.Compare(b.PricePerHour, a.PricePerHour) }
	case SortRatingDesc:
		return func(a, b types.Venue) int { return cmp.Compare(b.AverageRating, a.AverageRating) }
	}
	return nil
}

// Venues applies criteria then the sort key to an already fetched list.
func Venues(all []types.Venue, c VenueCriteria, s VenueSort) []types.Venue {
	return Sort(Filter(all, c.predicates()...), s.compare())
}

// Cities lists the distinct cities in input order, for filter buttons.
func Cities(all []types.Venue) []string {
	return distinct(all, func(v types.Venue) string { return v.City })
}

// Districts lists the distinct districts of city in input order.
func Districts(all []types.Venue, city string) []string {
	return distinct(Filter(all, VenueCriteria{City: city}.predicates()...),
		func(v types.Venue) string { return v.District })
}

func distinct(all []types.Venue, field func(types.Venue) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range all {
		name := field(v)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
