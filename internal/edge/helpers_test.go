package edge

import "github.com/greenbier/propedge/internal/probability"

func projectionDist(mu float64) probability.Dist {
	return probability.New(mu, 0.10)
}
