package cache

import (
	"sync"
	"time"

	"github.com/pollreminder/reminder-api/internal/signupform"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"github.com/pollreminder/reminder-api/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	formSessionsCacheName = "form_sessions"
	cleanupInterval       = time.Minute
)

// FormSession is one browser's signup form. Lock must be held while the
// controller is used so commands for the same form run one at a time.
type FormSession struct {
	ID         string
	CreatedAt  time.Time
	Controller *signupform.Controller

	mu sync.Mutex
}

// Lock serialises commands for this form
func (s *FormSession) Lock() {
	s.mu.Lock()
}

// Unlock releases the form
func (s *FormSession) Unlock() {
	s.mu.Unlock()
}

// ControllerFactory builds the controller for a new session
type ControllerFactory func() *signupform.Controller

// FormSessionCache keeps form sessions in memory with a sliding TTL
type FormSessionCache struct {
	cache   *gocache.Cache
	ttl     time.Duration
	factory ControllerFactory
	mu      sync.Mutex
}

// NewFormSessionCache creates a session cache. Sessions idle for longer
// than ttl are dropped.
func NewFormSessionCache(ttl time.Duration, factory ControllerFactory) *FormSessionCache {
	fc := &FormSessionCache{
		cache:   gocache.New(ttl, cleanupInterval),
		ttl:     ttl,
		factory: factory,
	}

	// go-cache fires OnEvicted only from its janitor here, so every call is
	// a session that went idle past its TTL
	fc.cache.OnEvicted(func(id string, _ interface{}) {
		metrics.CacheEvictions.WithLabelValues(formSessionsCacheName).Inc()
		fc.updateSizeMetric()
		logger.Debug("Form session evicted", zap.String("session_id", id))
	})
	fc.updateSizeMetric()

	return fc
}

// GetOrCreate returns the session for id, starting a fresh form on a miss.
// The second return value is true when the session was created.
func (fc *FormSessionCache) GetOrCreate(id string) (*FormSession, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if data, found := fc.cache.Get(id); found {
		if session, ok := data.(*FormSession); ok {
			// refresh the TTL on every access
			fc.cache.Set(id, session, fc.ttl)
			return session, false
		}
		// overwritten below; Set does not fire OnEvicted
		logger.Error("Invalid form session cache data type", zap.String("session_id", id))
	}

	session := &FormSession{
		ID:         id,
		CreatedAt:  time.Now(),
		Controller: fc.factory(),
	}
	fc.cache.Set(id, session, fc.ttl)
	fc.updateSizeMetric()

	logger.Debug("Form session created", zap.String("session_id", id))
	return session, true
}

// Get returns an existing session without creating one
func (fc *FormSessionCache) Get(id string) (*FormSession, bool) {
	data, found := fc.cache.Get(id)
	if !found {
		return nil, false
	}
	session, ok := data.(*FormSession)
	return session, ok
}

// Count returns the number of live sessions
func (fc *FormSessionCache) Count() int {
	return fc.cache.ItemCount()
}

func (fc *FormSessionCache) updateSizeMetric() {
	metrics.CacheSize.WithLabelValues(formSessionsCacheName).Set(float64(fc.cache.ItemCount()))
}
