package provider

import (
	"sort"
	"sync"

	"github.com/vibehealth/healthsync/internal/pkg/errors"
)

// Registry maps vendor and portal identifiers to their providers.
// Safe for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]DeviceDataProvider
	portals map[string]PortalDataProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]DeviceDataProvider),
		portals: make(map[string]PortalDataProvider),
	}
}

// RegisterDevice adds a device provider keyed by its vendor identifier.
// A later registration for the same vendor replaces the earlier one.
func (r *Registry) RegisterDevice(p DeviceDataProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[p.Vendor()] = p
}

// RegisterPortal adds a portal provider keyed by its portal type.
func (r *Registry) RegisterPortal(p PortalDataProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portals[p.PortalType()] = p
}

// Device returns the provider for a vendor, or a NOT_SUPPORTED error.
func (r *Registry) Device(vendor string) (DeviceDataProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.devices[vendor]
	if !ok {
		return nil, errors.NotSupported("device vendor", vendor)
	}
	return p, nil
}

// Portal returns the provider for a portal type, or a NOT_SUPPORTED error.
func (r *Registry) Portal(portalType string) (PortalDataProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.portals[portalType]
	if !ok {
		return nil, errors.NotSupported("portal type", portalType)
	}
	return p, nil
}

// SupportedVendors lists registered device vendors, sorted.
func (r *Registry) SupportedVendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vendors := make([]string, 0, len(r.devices))
	for v := range r.devices {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)
	return vendors
}

// SupportedPortals lists registered portal types, sorted.
func (r *Registry) SupportedPortals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	portals := make([]string, 0, len(r.portals))
	for p := range r.portals {
		portals = append(portals, p)
	}
	sort.Strings(portals)
	return portals
}
