package generation

import (
	"context"
	"fmt"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	placesPerCompetitor = 2
	placesConcurrency   = 3
)

// LocateCompetitors searches places for every named competitor in city. The
// own company and the "others" bucket are skipped. Results keep competitor order.
func (c *Coordinator) LocateCompetitors(ctx context.Context, sc Scope, city string, competitors []domain.Competitor) ([]domain.CompetitorLocation, error) {
	if !c.PlacesAvailable() {
		return []domain.CompetitorLocation{}, nil
	}

	var targets []domain.Competitor
	for _, comp := range competitors {
		if comp.Own || comp.Name == "" || comp.Name == DefaultOwnName || comp.Name == othersName {
			continue
		}
		targets = append(targets, comp)
	}

	start := c.now()
	found := make([][]domain.CompetitorLocation, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(placesConcurrency)
	for i, comp := range targets {
		g.Go(func() error {
			hits, err := c.places.Search(gctx, fmt.Sprintf("%s in %s", comp.Name, city), placesPerCompetitor)
			if err != nil {
				c.logger.Warn("Competitor place search failed", "competitor", comp.Name, "error", err)
				return nil
			}
			for _, p := range hits {
				found[i] = append(found[i], domain.CompetitorLocation{
					Place:       p,
					Competitor:  comp.Name,
					MarketShare: comp.Share,
					Description: comp.Description,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.CompetitorLocation, 0, len(targets)*placesPerCompetitor)
	for _, locs := range found {
		out = append(out, locs...)
	}
	c.record(ctx, sc, KindPlaces, start, nil)
	return out, nil
}
