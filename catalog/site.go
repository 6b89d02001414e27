package catalog

import (
	"sync"

	"varinode/pkg/errs"
)

// ShippingOption is one entry of a site's shipping option set.
type ShippingOption struct {
	Text    string
	Price   string
	Value   string
	Default bool
}

// OptionSet is a value-keyed option collection with a flagged default, used
// for both shipping and gifting options.
type OptionSet struct {
	DefaultValue string
	Values       map[string]ShippingOption
}

// Site is a distinct remote merchant/storefront with its own checkout
// parameters, shipping options and accepted payment types.
type Site struct {
	mu sync.Mutex

	id   string
	name string
	url  string
	logo string

	acceptedCardTypes  []string
	requiredParameters map[string]interface{}
	optionalParameters map[string]interface{}

	shippingOptions OptionSet
	giftingOptions  OptionSet

	selectedShippingOption string
	promoCodes             []string
	giftCards              []string
}

// NewSite builds a Site from a raw site_info block.
func NewSite(info map[string]interface{}) *Site {
	s := &Site{}
	s.Configure(info)
	return s
}

// Configure merges a raw site_info block into the site. Repeat sightings of
// the same site update it in place.
func (s *Site) Configure(info map[string]interface{}) {
	if info == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := info["site_id"].(string); ok && id != "" {
		s.id = id
	}
	if name, ok := info["site_name"].(string); ok {
		s.name = name
	}
	if u, ok := info["site_url"].(string); ok {
		s.url = u
	}
	if logo, ok := info["site_logo"].(string); ok {
		s.logo = logo
	}
	if types, ok := info["site_accepted_card_types"].([]interface{}); ok {
		s.acceptedCardTypes = s.acceptedCardTypes[:0]
		for _, t := range types {
			if str, ok := t.(string); ok {
				s.acceptedCardTypes = append(s.acceptedCardTypes, str)
			}
		}
	}
	if params, ok := info["required_parameters"].(map[string]interface{}); ok {
		s.requiredParameters = params
	}
	if params, ok := info["optional_parameters"].(map[string]interface{}); ok {
		s.optionalParameters = params
	}
	if raw, ok := info["site_shipping_options"].(map[string]interface{}); ok {
		s.shippingOptions = parseOptionSet(raw)
	}
	if raw, ok := info["site_gifting_options"].(map[string]interface{}); ok {
		s.giftingOptions = parseOptionSet(raw)
	}
}

func parseOptionSet(raw map[string]interface{}) OptionSet {
	set := OptionSet{Values: make(map[string]ShippingOption)}
	set.DefaultValue, _ = raw["default_value"].(string)
	values, _ := raw["values"].(map[string]interface{})
	for id, v := range values {
		block, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		opt := ShippingOption{}
		opt.Text, _ = block["text"].(string)
		opt.Price, _ = block["price"].(string)
		opt.Value, _ = block["value"].(string)
		opt.Default = id == set.DefaultValue
		set.Values[id] = opt
	}
	return set
}

// ID returns the site id.
func (s *Site) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Name returns the merchant name.
func (s *Site) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// URL returns the storefront URL.
func (s *Site) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Logo returns the merchant logo URL.
func (s *Site) Logo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logo
}

// AcceptedCardTypes returns the card types this site accepts.
func (s *Site) AcceptedCardTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptedCardTypes
}

// RequiredParameters returns the per-site required checkout parameters.
func (s *Site) RequiredParameters() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiredParameters
}

// AllowsGuestCheckout reports whether the site offers a guest account.
func (s *Site) AllowsGuestCheckout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requiredParameters == nil {
		return false
	}
	_, ok := s.requiredParameters["guest_account"]
	return ok
}

// ShippingOptions returns the site's shipping option set.
func (s *Site) ShippingOptions() OptionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shippingOptions
}

// DefaultShippingOption returns the value of the default shipping option,
// or "".
func (s *Site) DefaultShippingOption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	opt, ok := s.shippingOptions.Values[s.shippingOptions.DefaultValue]
	if !ok {
		return ""
	}
	return opt.Value
}

// SetShippingOption selects a shipping option; unknown values fail without
// changing the selection.
func (s *Site) SetShippingOption(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shippingOptions.Values[value]; !ok {
		return errs.Newf(errs.InvalidSelection, "unknown shipping option %q for site %s", value, s.id)
	}
	s.selectedShippingOption = value
	return nil
}

// SelectedShippingOption returns the chosen shipping option, falling back
// to the default.
func (s *Site) SelectedShippingOption() string {
	s.mu.Lock()
	selected := s.selectedShippingOption
	s.mu.Unlock()
	if selected != "" {
		return selected
	}
	return s.DefaultShippingOption()
}

// GiftingOptions returns the site's gifting option set.
func (s *Site) GiftingOptions() OptionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.giftingOptions
}

// AddPromoCode records a promo code to apply at checkout.
func (s *Site) AddPromoCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoCodes = append(s.promoCodes, code)
}

// PromoCodes returns the recorded promo codes.
func (s *Site) PromoCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoCodes
}

// AddGiftCard records a gift card to apply at checkout.
func (s *Site) AddGiftCard(card string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.giftCards = append(s.giftCards, card)
}

// GiftCards returns the recorded gift cards.
func (s *Site) GiftCards() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.giftCards
}
