package usecases

import "github.com/samirrijal/kopimap/internal/core/domain"

// BuildVisibleCafeList merges open and custom cafes, applies each record's
// override and drops hidden records. Open and custom ids never collide, so
// no deduplication happens. Input order is kept.
func BuildVisibleCafeList(open, custom []domain.Cafe, overrides map[string]domain.Override) []domain.Cafe {
	out := make([]domain.Cafe, 0, len(open)+len(custom))
	for _, list := range [][]domain.Cafe{open, custom} {
		for _, c := range list {
			o, ok := overrides[c.ID]
			if !ok {
				out = append(out, c)
				continue
			}
			if o.Hidden {
				continue
			}
			out = append(out, o.Apply(c))
		}
	}
	return out
}
