package directory

import (
	"errors"
	"testing"
)

func TestFiltersRoundTrip(t *testing.T) {
	f := Filters{Tables: FilterFavourite}
	if got := ParseFilters(EncodeFilters(f)); got != f {
		t.Fatalf("expected %+v, got %+v", f, got)
	}
	if got := ParseFilters(""); got.Tables != FilterSlots {
		t.Fatalf("expected default Slots, got %+v", got)
	}
	if got := ParseFilters("{not json"); got.Tables != FilterSlots {
		t.Fatalf("expected default for malformed input, got %+v", got)
	}
}

func TestParseLaunchTable(t *testing.T) {
	got, err := ParseLaunchTable([]byte(`{"tableId":12,"tableName":"Keno","slug":"keno","iframe":"unity","category":"fun"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.TableID != "12" || got.Runtime != RuntimeUnity || got.Orientation != Landscape {
		t.Fatalf("unexpected table %+v", got)
	}

	bad := []string{
		`{"tableName":"Keno","slug":"keno","iframe":"unity"}`,
		`{"tableId":"1","tableName":"Keno","slug":"Keno Game","iframe":"unity"}`,
		`{"tableId":"1","tableName":"Keno","slug":"keno","iframe":"flash"}`,
		`[1,2,3]`,
	}
	for _, raw := range bad {
		if _, err := ParseLaunchTable([]byte(raw)); !errors.Is(err, ErrInvalidLaunchTable) {
			t.Fatalf("expected ErrInvalidLaunchTable for %s, got %v", raw, err)
		}
	}
}
