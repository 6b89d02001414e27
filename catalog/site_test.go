package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varinode/pkg/errs"
)

func guestSiteInfo() map[string]interface{} {
	return map[string]interface{}{
		"site_id":                  "s1",
		"site_name":                "Shop One",
		"site_url":                 "http://shop.test",
		"site_logo":                "http://shop.test/logo.png",
		"site_accepted_card_types": []interface{}{"visa", "mastercard"},
		"required_parameters": map[string]interface{}{
			"guest_account": map[string]interface{}{"email": nil},
		},
		"site_shipping_options": map[string]interface{}{
			"default_value": "std",
			"values": map[string]interface{}{
				"std":     map[string]interface{}{"text": "Standard", "price": "0.00", "value": "std"},
				"express": map[string]interface{}{"text": "Express", "price": "9.99", "value": "express"},
			},
		},
	}
}

func TestSiteConfigure(t *testing.T) {
	site := NewSite(guestSiteInfo())

	assert.Equal(t, "s1", site.ID())
	assert.Equal(t, "Shop One", site.Name())
	assert.Equal(t, []string{"visa", "mastercard"}, site.AcceptedCardTypes())
	assert.True(t, site.AllowsGuestCheckout())

	// Repeat sightings merge; the id survives an info block without one.
	site.Configure(map[string]interface{}{"site_name": "Shop One Renamed"})
	assert.Equal(t, "s1", site.ID())
	assert.Equal(t, "Shop One Renamed", site.Name())
}

func TestSiteShippingOptions(t *testing.T) {
	site := NewSite(guestSiteInfo())

	opts := site.ShippingOptions()
	require.Len(t, opts.Values, 2)
	assert.True(t, opts.Values["std"].Default)
	assert.False(t, opts.Values["express"].Default)

	assert.Equal(t, "std", site.DefaultShippingOption())
	assert.Equal(t, "std", site.SelectedShippingOption())

	require.NoError(t, site.SetShippingOption("express"))
	assert.Equal(t, "express", site.SelectedShippingOption())

	err := site.SetShippingOption("overnight")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidSelection, errs.Code(err))
	assert.Equal(t, "express", site.SelectedShippingOption())
}

func TestSitePromoCodesAndGiftCards(t *testing.T) {
	site := NewSite(guestSiteInfo())
	site.AddPromoCode("SAVE10")
	site.AddGiftCard("GC-1")

	assert.Equal(t, []string{"SAVE10"}, site.PromoCodes())
	assert.Equal(t, []string{"GC-1"}, site.GiftCards())
}

func TestSitesRequiredParameters(t *testing.T) {
	guest := NewProductFromData(nil, map[string]interface{}{"product_id": "p1"}, guestSiteInfo())
	noGuest := NewProductFromData(nil, map[string]interface{}{"product_id": "p2"}, map[string]interface{}{
		"site_id":             "s2",
		"required_parameters": map[string]interface{}{},
	})

	sites := NewSites()
	sites.UpdateFromProducts(map[string]map[string]*Product{
		"s1": {"p1": guest},
		"s2": {"p2": noGuest},
	})
	assert.Equal(t, 2, sites.Len())
	assert.Equal(t, []string{"s1", "s2"}, sites.IDs())

	params := sites.RequiredParameters("shopper@example.com")
	require.Contains(t, params, "s1")
	assert.NotContains(t, params, "s2")

	entry := params["s1"].(map[string]interface{})
	account := entry["guest_account"].(map[string]interface{})
	assert.Equal(t, "shopper@example.com", account["email"])

	// Default shipping stays implicit.
	assert.NotContains(t, entry, "shipping_option")

	require.NoError(t, sites.Get("s1").SetShippingOption("express"))
	entry = sites.RequiredParameters("shopper@example.com")["s1"].(map[string]interface{})
	assert.Equal(t, "express", entry["shipping_option"])
}
