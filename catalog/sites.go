package catalog

import (
	"sort"
	"sync"
)

// Sites aggregates the distinct Site objects behind a set of cart products
// and computes their per-site checkout parameters.
type Sites struct {
	mu    sync.Mutex
	sites map[string]*Site
}

// NewSites creates an empty aggregate.
func NewSites() *Sites {
	return &Sites{sites: make(map[string]*Site)}
}

// UpdateFromProducts upserts one Site per distinct site id seen in the
// given per-site product groups. Repeat sightings merge into the existing
// Site.
func (s *Sites) UpdateFromProducts(groups map[string]map[string]*Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for siteID, products := range groups {
		var info map[string]interface{}
		for _, p := range products {
			if in := p.SiteInfo(); in != nil {
				info = in
				break
			}
		}
		if info == nil {
			continue
		}
		if existing, ok := s.sites[siteID]; ok {
			existing.Configure(info)
		} else {
			s.sites[siteID] = NewSite(info)
		}
	}
}

// Get returns the Site for a site id, or nil.
func (s *Sites) Get(siteID string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sites[siteID]
}

// IDs returns the known site ids in stable order.
func (s *Sites) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sites))
	for id := range s.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of distinct sites.
func (s *Sites) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sites)
}

// RequiredParameters assembles the per-site parameter map for orders.setInfo.
// Sites that offer guest checkout get the customer's email as the guest
// account; the shipping option is only included when it differs from the
// site default. Sites without guest checkout are left out (registration is
// not supported).
func (s *Sites) RequiredParameters(customerEmail string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := make(map[string]interface{})
	for id, site := range s.sites {
		if !site.AllowsGuestCheckout() {
			continue
		}
		entry := map[string]interface{}{
			"guest_account": map[string]interface{}{"email": customerEmail},
		}
		if opt := site.SelectedShippingOption(); opt != site.DefaultShippingOption() {
			entry["shipping_option"] = opt
		}
		params[id] = entry
	}
	return params
}
