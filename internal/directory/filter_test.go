package directory

import (
	"strings"
	"testing"
)

func sampleTables() []Table {
	return []Table{
		{TableID: "1", TableName: "Keno", Category: CategoryFun, Slug: "keno"},
		{TableID: "2", TableName: "cleopatra", Category: CategorySlot, Slug: "cleopatra"},
		{TableID: "3", TableName: "Fortune Lion", Category: CategorySlot, Slug: "fortune-lion"},
		{TableID: "4", TableName: "Baccarat VR", Category: CategoryCasino, Slug: "baccarat-vr"},
		{TableID: "5", TableName: "Crazy 7", Category: CategorySlot, Slug: "crazy7"},
	}
}

func names(tables []Table) string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.TableName)
	}
	return strings.Join(out, ",")
}

func TestFilter(t *testing.T) {
	favs := []string{"5", "1"}
	tests := []struct {
		name    string
		filter  string
		exclude string
		want    string
	}{
		{name: "favourites", filter: FilterFavourite, want: "Crazy 7,Keno"},
		{name: "favourites excluding one", filter: FilterFavourite, exclude: "5", want: "Keno"},
		{name: "all", filter: FilterAll, want: "Baccarat VR,cleopatra,Crazy 7,Fortune Lion,Keno"},
		{name: "empty means all", filter: "", want: "Baccarat VR,cleopatra,Crazy 7,Fortune Lion,Keno"},
		{name: "slots", filter: FilterSlots, want: "cleopatra,Crazy 7,Fortune Lion"},
		{name: "slots excluding", filter: FilterSlots, exclude: "2", want: "Crazy 7,Fortune Lion"},
		{name: "fun", filter: FilterFun, want: "Keno"},
		{name: "casino", filter: FilterCasino, want: "Baccarat VR"},
		{name: "unknown passes through", filter: "Jackpots", want: "Baccarat VR,cleopatra,Crazy 7,Fortune Lion,Keno"},
		{name: "exclude unknown id", filter: FilterAll, exclude: "99", want: "Baccarat VR,cleopatra,Crazy 7,Fortune Lion,Keno"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sampleTables(), Filters{Tables: tt.filter}, favs, tt.exclude)
			if names(got) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, names(got))
			}
		})
	}
}

func TestFilterIsPure(t *testing.T) {
	in := sampleTables()
	first := Filter(in, Filters{Tables: FilterAll}, nil, "")
	second := Filter(in, Filters{Tables: FilterAll}, nil, "")
	if names(first) != names(second) {
		t.Fatalf("expected stable output, got %s and %s", names(first), names(second))
	}
	if names(in) != names(sampleTables()) {
		t.Fatalf("input was reordered: %s", names(in))
	}
}

func TestFilterSortIsStableForEqualNames(t *testing.T) {
	in := []Table{
		{TableID: "b", TableName: "Mines", Category: CategorySlot},
		{TableID: "a", TableName: "Mines", Category: CategorySlot},
	}
	got := Filter(in, Filters{Tables: FilterSlots}, nil, "")
	if got[0].TableID != "b" || got[1].TableID != "a" {
		t.Fatalf("expected input order kept for ties, got %v", got)
	}
}
