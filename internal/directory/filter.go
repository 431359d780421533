package directory

import (
	"slices"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	FilterAll       = "all"
	FilterSlots     = "Slots"
	FilterFun       = "Fun"
	FilterCasino    = "Casino"
	FilterFavourite = "Favourite"
)

type Filters struct {
	Tables string `json:"tables"`
}

// DefaultFilters is what a fresh lobby shows.
func DefaultFilters() Filters {
	return Filters{Tables: FilterSlots}
}

// Filter projects tables through f, drops excludeID and sorts by display
// name using English collation. An unknown filter value leaves the set
// unfiltered and logs a warning. The input slice is never modified.
func Filter(tables []Table, f Filters, favIDs []string, excludeID string) []Table {
	return FilterLocale(language.English, tables, f, favIDs, excludeID)
}

func FilterLocale(tag language.Tag, tables []Table, f Filters, favIDs []string, excludeID string) []Table {
	var keep func(Table) bool
	switch f.Tables {
	case "", FilterAll:
	case FilterFun:
		keep = func(t Table) bool { return t.Category == CategoryFun }
	case FilterSlots:
		keep = func(t Table) bool { return t.Category == CategorySlot }
	case FilterCasino:
		keep = func(t Table) bool { return t.Category == CategoryCasino }
	case FilterFavourite:
		keep = func(t Table) bool { return slices.Contains(favIDs, string(t.TableID)) }
	default:
		log.Warn().Str("filter", f.Tables).Msg("unexpected_filter_value")
	}

	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if keep != nil && !keep(t) {
			continue
		}
		if excludeID != "" && string(t.TableID) == excludeID {
			continue
		}
		out = append(out, t)
	}

	// A Collator keeps scratch buffers, so each call gets its own.
	col := collate.New(tag)
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].TableName, out[j].TableName) < 0
	})
	return out
}
