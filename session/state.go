// Package session holds the response state shared across SDK components.
// Selected fields of every successful API response are persisted here so
// later calls can reuse "the current" customer, card, address, cart and
// pre-order ids without threading them through every call site.
package session

import (
	"sync"
)

// Well-known state keys.
const (
	KeyCustomerID = "customer_id"
	KeyCardID     = "card_id"
	KeyAddressID  = "address_id"
	KeyCartID     = "cart_id"
	KeyPreOrderID = "pre_order_id"
	KeySiteID     = "site_id"
	KeyProductID  = "product_id"
)

// SiteInfo is the raw per-site metadata block as returned by the API.
type SiteInfo = map[string]interface{}

// State is an explicit, injectable session state. It only grows or gets
// overwritten; successful responses persist into it and nothing rolls it
// back. Ordering of concurrent writers is last-writer-wins by settlement
// order.
type State struct {
	mu       sync.RWMutex
	values   map[string]string
	siteInfo SiteInfo
	sites    map[string]SiteInfo
}

// NewState creates an empty session state.
func NewState() *State {
	return &State{
		values: make(map[string]string),
		sites:  make(map[string]SiteInfo),
	}
}

// Persist inspects top-level response fields and retains the recognized
// ones. Absent fields are not an error; present fields overwrite.
func (s *State) Persist(response map[string]interface{}) {
	if response == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer, ok := response["customer"].(map[string]interface{}); ok {
		s.setLocked(KeyCustomerID, str(customer["customer_id"]))
	}
	if card, ok := response["card"].(map[string]interface{}); ok {
		s.setLocked(KeyCardID, str(card["card_id"]))
	}
	if address, ok := response["address"].(map[string]interface{}); ok {
		s.setLocked(KeyAddressID, str(address["address_id"]))
	}
	s.setLocked(KeyCartID, str(response["cart_id"]))
	s.setLocked(KeyPreOrderID, str(response["pre_order_id"]))

	sites, ok := response["processed_sites"].([]interface{})
	if !ok || len(sites) == 0 {
		return
	}

	// Convenience snapshot: first site's info/id and first product id.
	first, _ := sites[0].(map[string]interface{})
	if first == nil {
		return
	}
	info, _ := first["site_info"].(map[string]interface{})
	siteID := ""
	if info != nil {
		siteID = str(info["site_id"])
	}
	if products, ok := first["products"].([]interface{}); ok && len(products) > 0 {
		if p, ok := products[0].(map[string]interface{}); ok {
			s.setLocked(KeyProductID, str(p["product_id"]))
		}
	}
	if siteID != "" {
		s.setLocked(KeySiteID, siteID)
		s.siteInfo = info
	}

	// Upsert the full site record of every processed site into the registry.
	for _, raw := range sites {
		site, _ := raw.(map[string]interface{})
		if site == nil {
			continue
		}
		sinfo, _ := site["site_info"].(map[string]interface{})
		if sinfo == nil {
			continue
		}
		id := str(sinfo["site_id"])
		if id == "" {
			continue
		}
		existing := s.sites[id]
		if existing == nil {
			existing = make(SiteInfo, len(sinfo))
			s.sites[id] = existing
		}
		for k, v := range sinfo {
			existing[k] = v
		}
	}
}

// setLocked overwrites a key; an identity, once set, is never replaced with
// an empty value.
func (s *State) setLocked(key, value string) {
	if value == "" {
		return
	}
	s.values[key] = value
}

// Read returns the last-seen value for a well-known key.
func (s *State) Read(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set overwrites a well-known key directly. Empty values are ignored so an
// established identity is never cleared by accident.
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *State) CustomerID() string { return s.Read(KeyCustomerID) }
func (s *State) CardID() string     { return s.Read(KeyCardID) }
func (s *State) AddressID() string  { return s.Read(KeyAddressID) }
func (s *State) CartID() string     { return s.Read(KeyCartID) }
func (s *State) PreOrderID() string { return s.Read(KeyPreOrderID) }
func (s *State) SiteID() string     { return s.Read(KeySiteID) }
func (s *State) ProductID() string  { return s.Read(KeyProductID) }

// SiteInfo returns the most recently seen first-site info block.
func (s *State) FirstSiteInfo() SiteInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.siteInfo
}

// Site returns the registered site info for a site id, or nil.
func (s *State) Site(siteID string) SiteInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sites[siteID]
}

// Sites returns a copy of the site registry keyed by site id.
func (s *State) Sites() map[string]SiteInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SiteInfo, len(s.sites))
	for id, info := range s.sites {
		out[id] = info
	}
	return out
}

// Parameters returns the required and optional checkout parameters recorded
// for a site, if the site has been seen.
func (s *State) Parameters(siteID string) (required, optional interface{}, ok bool) {
	info := s.Site(siteID)
	if info == nil {
		return nil, nil, false
	}
	return info["required_parameters"], info["optional_parameters"], true
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
