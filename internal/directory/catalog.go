package directory

// supportedSlugs are the tables this client ships assets for. Tables the
// API returns outside this set are dropped on load.
var supportedSlugs = map[string]struct{}{
	"cleopatra":             {},
	"china-street":          {},
	"spooky-reels":          {},
	"fortune-lion":          {},
	"fruit777":              {},
	"buffalo-safari":        {},
	"golden-wheel":          {},
	"life-in-luxury":        {},
	"pirates-of-caribbean":  {},
	"keno":                  {},
	"vegas777":              {},
	"xmas-magic":            {},
	"panda-fortune":         {},
	"crazy7":                {},
	"tron-minesweeper":      {},
	"fish-frenzy":           {},
	"grass-minesweeper":     {},
	"32-cards-vr":           {},
	"amar-akbar-anthony-vr": {},
	"teenpatti-vr":          {},
	"super-over-vr":         {},
	"7-upanddown-vr":        {},
	"auto-roulette-vr":      {},
	"high-low-vr":           {},
	"baccarat-vr":           {},
	"andar-bahar-vr":        {},
	"dragon-tiger-vr":       {},
	"mines":                 {},
	"mines-field":           {},
	"jelly-jackpot":         {},
	"billys-game":           {},
	"bayon-minesweeper":     {},
	"candy-clash":           {},
	"gummy-blast":           {},
	"divine-reckoning":      {},
	"salsa-sizzle":          {},
	"lunar-howl":            {},
	"puppy-clash":           {},
	"marble-plinko":         {},
	"big-cash-wheel":        {},
	"fishing-fortune":       {},
	"fist-of-glory":         {},
	"red-heat-reels":        {},
}

func Supported(slug string) bool {
	_, ok := supportedSlugs[slug]
	return ok
}

// KeepSupported returns the tables whose slug is in the catalog, in order.
func KeepSupported(tables []Table) []Table {
	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		if Supported(t.Slug) {
			out = append(out, t)
		}
	}
	return out
}
