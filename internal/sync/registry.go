package sync

import (
	"fmt"
	"sort"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/studvik/companion/internal/healing"
	"github.com/studvik/companion/internal/model"
)

// Bundle groups one user's sync services with the failure tracker they
// share. The tracker spans integrations so recovery prompts can be rate
// limited per user, not per integration instance.
type Bundle struct {
	Tracker  *healing.Tracker
	services map[model.Integration]*Service
}

// NewBundle creates an empty bundle around a shared tracker.
func NewBundle(tracker *healing.Tracker) *Bundle {
	return &Bundle{
		Tracker:  tracker,
		services: make(map[model.Integration]*Service),
	}
}

// Add registers a service under its integration tag.
func (b *Bundle) Add(svc *Service) {
	b.services[svc.Integration()] = svc
}

// Service returns the service for one integration, if configured.
func (b *Bundle) Service(integration model.Integration) (*Service, bool) {
	svc, ok := b.services[integration]
	return svc, ok
}

// Services returns all services in stable integration order.
func (b *Bundle) Services() []*Service {
	tags := make([]string, 0, len(b.services))
	for tag := range b.services {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)

	services := make([]*Service, 0, len(tags))
	for _, tag := range tags {
		services = append(services, b.services[model.Integration(tag)])
	}
	return services
}

// Stop halts every service in the bundle.
func (b *Bundle) Stop() {
	for _, svc := range b.services {
		svc.Stop()
	}
}

// BundleFactory builds the service bundle for one user.
type BundleFactory func(userID string) (*Bundle, error)

// Registry owns the per-user sync bundles. Bundles are built lazily on
// first use and torn down when the account goes away, so sync state
// never leaks across users.
type Registry struct {
	mu      gosync.Mutex
	log     *zap.Logger
	build   BundleFactory
	bundles map[string]*Bundle
}

// NewRegistry creates a registry that builds bundles with the given
// factory.
func NewRegistry(build BundleFactory, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:     log,
		build:   build,
		bundles: make(map[string]*Bundle),
	}
}

// Bundle returns the user's bundle, building it on first use.
func (r *Registry) Bundle(userID string) (*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bundles[userID]; ok {
		return b, nil
	}

	b, err := r.build(userID)
	if err != nil {
		return nil, fmt.Errorf("building sync bundle for user %s: %w", userID, err)
	}
	r.bundles[userID] = b

	r.log.Info("sync bundle created",
		zap.String("user_id", userID),
		zap.Int("services", len(b.services)))
	return b, nil
}

// Remove stops and discards the user's bundle, if one exists.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	b, ok := r.bundles[userID]
	delete(r.bundles, userID)
	r.mu.Unlock()

	if ok {
		b.Stop()
		r.log.Info("sync bundle removed", zap.String("user_id", userID))
	}
}

// Shutdown stops every bundle. Used on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	bundles := make([]*Bundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		bundles = append(bundles, b)
	}
	r.bundles = make(map[string]*Bundle)
	r.mu.Unlock()

	for _, b := range bundles {
		b.Stop()
	}
}
