package memory

import (
	"time"

	"docflash-be/pkg/queue"

	"github.com/patrickmn/go-cache"
)

const healthKey = "queue_health"

// HealthRepository keeps the last queue health snapshot so that status
// polling does not hit the broker on every request.
type HealthRepository struct {
	cache *cache.Cache
}

func NewHealthRepository(ttl time.Duration) *HealthRepository {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &HealthRepository{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *HealthRepository) Save(h queue.Health) {
	r.cache.Set(healthKey, h, cache.DefaultExpiration)
}

func (r *HealthRepository) Get() (queue.Health, bool) {
	if x, found := r.cache.Get(healthKey); found {
		return x.(queue.Health), true
	}
	return queue.Health{}, false
}

func (r *HealthRepository) Invalidate() {
	r.cache.Delete(healthKey)
}
