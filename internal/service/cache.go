package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей каталога.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей каталога.",
	})
	cachePurgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_cache_purges_total",
		Help: "Количество полных сбросов кэша после замены снимка.",
	})
)

// CacheService: LRU-кэш записей каталога с TTL.
// Кэшируются только записи; временные ссылки на файлы не кэшируются никогда.
// Кэш сбрасывается целиком при каждой записи снимка (своим процессом или чужим).
//
// Поколение растёт при каждом сбросе. Запись, прочитанная из каталога до сброса,
// в кэш не попадает.
type CacheService struct {
	cache *expirable.LRU[string, model.VideoRecord]

	mu  sync.Mutex
	gen uint64
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, model.VideoRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись из кэша по ID.
func (c *CacheService) Get(id string) (model.VideoRecord, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return model.VideoRecord{}, false
}

// Generation возвращает текущее поколение кэша.
// Читается до обращения к каталогу и передаётся в Set.
func (c *CacheService) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Set добавляет запись, если с момента чтения gen кэш не сбрасывался.
// Возвращает false, если запись устарела и не добавлена.
func (c *CacheService) Set(rec model.VideoRecord, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.cache.Add(rec.ID, rec)
	return true
}

// Purge удаляет все записи и начинает новое поколение.
func (c *CacheService) Purge() {
	c.mu.Lock()
	c.gen++
	c.cache.Purge()
	c.mu.Unlock()
	cachePurgesTotal.Inc()
}

// Len возвращает количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
