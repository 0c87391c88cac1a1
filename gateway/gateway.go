// Package gateway relays messages between the home ledger and remote domains through
// redundant routers. Outbound messages are split into one full delivery and hash-only
// proofs, inbound messages are admitted to the execution queue only once every configured
// router of the domain agreed on their content.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultMaxRouterCount bounds the routers of a single domain
	DefaultMaxRouterCount = 8
	// DefaultDisputeWindow is the number of blocks a recovery can be disputed for
	DefaultDisputeWindow = 100

	routerCacheSize = 128
)

// InboundMessageHandler executes messages admitted to the queue
type InboundMessageHandler interface {
	Handle(ctx context.Context, domain types.Domain, msg *message.Message) error
}

// OutboundMessageHandler accepts messages of business collaborators for delivery to a domain
type OutboundMessageHandler interface {
	Handle(ctx context.Context, sender types.Address, domain types.Domain, msg *message.Message) error
}

// RouterProvider resolves the routers configured for a domain
type RouterProvider interface {
	RoutersForDomain(domain types.Domain) ([]types.RouterID, error)
}

// BlockProvider returns the current block of the home ledger
type BlockProvider interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// InboundMessageHandlerFunc adapts a function to InboundMessageHandler
type InboundMessageHandlerFunc func(ctx context.Context, domain types.Domain, msg *message.Message) error

func (f InboundMessageHandlerFunc) Handle(ctx context.Context, domain types.Domain, msg *message.Message) error {
	return f(ctx, domain, msg)
}

// Config is the gateway configuration
type Config struct {
	Admins          []types.Address
	MaxRouterCount  int
	DisputeWindow   uint64
	EventBufferSize int
}

func (c *Config) validate() error {
	if c.MaxRouterCount <= 0 {
		return fmt.Errorf("max router count must be positive, got %d", c.MaxRouterCount)
	}

	for _, admin := range c.Admins {
		if admin.IsZero() {
			return fmt.Errorf("%w: zero address admin", ErrBadOrigin)
		}
	}

	return nil
}

// DefaultConfig returns the gateway configuration with default limits and no admins
func DefaultConfig() *Config {
	return &Config{
		MaxRouterCount:  DefaultMaxRouterCount,
		DisputeWindow:   DefaultDisputeWindow,
		EventBufferSize: events.DefaultBufferSize,
	}
}

var (
	_ OutboundMessageHandler = (*Gateway)(nil)
	_ RouterProvider         = (*Gateway)(nil)
)

// Gateway is the cross-domain message relay
type Gateway struct {
	config  *Config
	admins  map[types.Address]struct{}
	state   *state.State
	routers *router.Registry
	handler InboundMessageHandler
	blocks  BlockProvider
	events  *events.Manager
	logger  hclog.Logger

	// lock serializes every lookup, mutate and persist sequence
	lock sync.Mutex
	// batches holds the open batch window of each sender
	batches map[types.Address]*batch
	// inFlight holds the nonces whose handler is currently running
	inFlight map[types.Nonce]struct{}
	// routerCache caches the router list of each domain
	routerCache *lru.Cache
	// routersLoaded is called after a router list is read from the store, before it is cached
	routersLoaded func(types.Domain)
}

// New creates the gateway on top of the given state and router adapters
func New(config *Config, st *state.State, routers *router.Registry, handler InboundMessageHandler,
	blocks BlockProvider, logger hclog.Logger) (*Gateway, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	routerCache, err := lru.New(routerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("unable to create router cache, %w", err)
	}

	g := &Gateway{
		config:      config,
		admins:      make(map[types.Address]struct{}, len(config.Admins)),
		state:       st,
		routers:     routers,
		handler:     handler,
		blocks:      blocks,
		logger:      logger.Named("gateway"),
		batches:     make(map[types.Address]*batch),
		inFlight:    make(map[types.Nonce]struct{}),
		routerCache: routerCache,
	}

	g.events = events.NewManager(g.logger, config.EventBufferSize)

	for _, admin := range config.Admins {
		g.admins[admin] = struct{}{}
	}

	return g, nil
}

// Close cancels every event subscription
func (g *Gateway) Close() {
	g.events.Close()
}

// Subscribe registers a listener for gateway events of the given types, every type when none is given
func (g *Gateway) Subscribe(eventTypes ...events.Type) *events.Subscription {
	return g.events.Subscribe(eventTypes...)
}

// Unsubscribe cancels the subscription
func (g *Gateway) Unsubscribe(id string) {
	g.events.Cancel(id)
}

func (g *Gateway) fire(evs []*events.Event) {
	for _, e := range evs {
		g.logger.Debug("event", "event", e)
		g.events.Fire(e)
	}
}

func (g *Gateway) isAdmin(caller types.Address) bool {
	_, ok := g.admins[caller]

	return ok
}

func (g *Gateway) requireAdmin(caller types.Address) error {
	if caller.IsZero() {
		return ErrBadOrigin
	}

	if !g.isAdmin(caller) {
		return fmt.Errorf("%w: %s is not an admin", ErrUnauthorized, caller)
	}

	return nil
}

// requireAdminOrRelayer checks the caller is an admin or an allow-listed relayer of the domain
func (g *Gateway) requireAdminOrRelayer(caller types.Address, domain types.Domain, tx *bolt.Tx) error {
	if caller.IsZero() {
		return ErrBadOrigin
	}

	if g.isAdmin(caller) {
		return nil
	}

	allowed, err := g.state.RegistryStore.IsRelayer(domain, caller, tx)
	if err != nil {
		return err
	}

	if !allowed {
		return fmt.Errorf("%w: %s is neither admin nor relayer of %s", ErrUnauthorized, caller, domain)
	}

	return nil
}

func validateDomain(domain types.Domain) error {
	if err := domain.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDomain, err)
	}

	return nil
}

// Routers returns the ids of every router adapter known to the gateway
func (g *Gateway) Routers() []types.RouterID {
	return g.routers.IDs()
}

// RoutersForDomain returns the routers configured for the domain
func (g *Gateway) RoutersForDomain(domain types.Domain) ([]types.RouterID, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.routersForDomain(domain, nil)
}

// routersForDomain must be called with g.lock held, so that a lookup filling the cache
// never overlaps SetRouters. Writable transactions bypass the cache, they may still roll back.
func (g *Gateway) routersForDomain(domain types.Domain, tx *bolt.Tx) ([]types.RouterID, error) {
	if tx != nil && tx.Writable() {
		return g.state.RegistryStore.GetRouters(domain, tx)
	}

	if cached, ok := g.routerCache.Get(domain); ok {
		if ids, ok := cached.([]types.RouterID); ok {
			return append([]types.RouterID(nil), ids...), nil
		}
	}

	ids, err := g.state.RegistryStore.GetRouters(domain, tx)
	if err != nil {
		return nil, err
	}

	if g.routersLoaded != nil {
		g.routersLoaded(domain)
	}

	g.routerCache.Add(domain, append([]types.RouterID(nil), ids...))

	return ids, nil
}

// configuredRouter checks the router is configured for the domain
func (g *Gateway) configuredRouter(domain types.Domain, id types.RouterID, tx *bolt.Tx) ([]types.RouterID, error) {
	ids, err := g.routersForDomain(domain, tx)
	if err != nil {
		return nil, err
	}

	for _, configured := range ids {
		if configured == id {
			return ids, nil
		}
	}

	return nil, fmt.Errorf("%w: %s is not configured for %s", ErrUnknownRouter, id, domain)
}
