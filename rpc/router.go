package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Router serves many services in-process. It implements ClientHandler, so
// generated clients can call generated servers without a network transport,
// and transports use it to resolve the service of an incoming call.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	services map[string]ServerService
	mw       []Middleware
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		services: make(map[string]ServerService),
	}
}

// Use appends server-side middleware applied to every routed call.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mw = append(r.mw, mw...)
}

// Register adds svc under its descriptor.
func (r *Router) Register(svc ServerService) error {
	desc := svc.Descriptor()
	if desc == "" {
		return fmt.Errorf("register service: empty descriptor")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[desc]; exists {
		return fmt.Errorf("register service %s: already registered", desc)
	}
	r.services[desc] = svc
	r.logger.Debug("service registered", slog.String("service", desc))
	return nil
}

// Lookup returns the service registered under descriptor.
func (r *Router) Lookup(descriptor string) (ServerService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[descriptor]
	return svc, ok
}

// Services returns the registered descriptors in sorted order.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call routes a call to the service registered as "pkg.service".
func (r *Router) Call(ctx context.Context, pkg, service, method string, input FrameStream) (FrameStream, error) {
	desc := JoinDescriptor(pkg, service)

	r.mu.RLock()
	svc, ok := r.services[desc]
	mw := r.mw
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("service not found",
			slog.String("service", desc),
			slog.String("method", method))
		return nil, ServiceNotFound(desc)
	}
	if len(mw) == 0 {
		return svc.Call(ctx, method, input)
	}
	invoke := Chain(mw...)(func(ctx context.Context, info CallInfo, input FrameStream) (FrameStream, error) {
		return svc.Call(ctx, info.Method, input)
	})
	return invoke(ctx, CallInfo{Package: pkg, Service: service, Method: method, Server: true}, input)
}
