package attendance

import "context"

// MetricsCache stores computed metrics per student id. Implementations
// live in internal/cache; a nil cache disables caching.
type MetricsCache interface {
	Get(ctx context.Context, studentID string) (Metrics, bool, error)
	Set(ctx context.Context, studentID string, m Metrics) error
	Invalidate(ctx context.Context, studentIDs ...string) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (Metrics, bool, error) { return Metrics{}, false, nil }
func (nopCache) Set(context.Context, string, Metrics) error         { return nil }
func (nopCache) Invalidate(context.Context, ...string) error        { return nil }
