package catalog

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/pkg/errs"
	"varinode/pkg/logger"
)

// Product wraps one remote product record. A Product starts unfetched;
// Fetch resolves it by URL and either loads its metadata or disables it
// with a reason. Disabled is terminal and means the remote system
// determined the product unsupported, as opposed to a transport failure.
type Product struct {
	client *api.Client

	mu         sync.Mutex
	url        string
	data       map[string]interface{}
	siteInfo   map[string]interface{}
	schema     Schema
	deps       Dependencies
	selections map[string]string
	disabled   bool
	reason     string
	cartID     string

	fetchDone chan struct{}
	fetchErr  error
}

// NewProduct creates a Product to be resolved from a URL.
func NewProduct(client *api.Client, url string) *Product {
	return &Product{
		client:     client,
		url:        url,
		data:       map[string]interface{}{"url": url},
		selections: make(map[string]string),
	}
}

// NewProductFromData creates a Product from an already-fetched record, as
// returned inside a cart load. The record is merged as if it came from a
// URL resolution and defaults are applied.
func NewProductFromData(client *api.Client, record map[string]interface{}, siteInfo map[string]interface{}) *Product {
	p := &Product{
		client:     client,
		data:       make(map[string]interface{}),
		selections: make(map[string]string),
	}
	p.mergeProductInfo(record)
	p.siteInfo = siteInfo
	p.applyDefaults()

	// Already settled: mark the load as done so cart readiness does not
	// wait on a fetch that will never be issued.
	p.fetchDone = make(chan struct{})
	close(p.fetchDone)
	return p
}

// URL returns the product URL.
func (p *Product) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Fetch resolves the product by URL. It is idempotent: a second call while
// a fetch is pending or settled waits for and returns the first call's
// outcome instead of re-issuing the request.
func (p *Product) Fetch(ctx context.Context) error {
	p.mu.Lock()
	if p.fetchDone != nil {
		done := p.fetchDone
		p.mu.Unlock()
		select {
		case <-done:
			p.mu.Lock()
			err := p.fetchErr
			p.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	p.fetchDone = done
	url := p.url
	p.mu.Unlock()

	err := p.doFetch(ctx, url)

	p.mu.Lock()
	p.fetchErr = err
	p.mu.Unlock()
	close(done)
	return err
}

// doFetch issues the batch URL-resolution call. The endpoint is inherently
// batch-shaped, so a single URL still goes out as a one-element batch.
func (p *Product) doFetch(ctx context.Context, url string) error {
	resp, err := p.client.Call(ctx, "products.getFromURLs", api.Params{
		"product_urls": []string{url},
	})
	if err != nil {
		return err
	}

	status := resp.Status()
	if status == api.StatusErrors || status == api.StatusCompleteWithErrors {
		p.Disable("product information not loaded successfully")
		return errs.Newf(errs.RemoteAPI, "product information not loaded successfully: %s", url)
	}

	for _, unsupported := range resp.Strings("unsupported_urls") {
		if unsupported == url {
			p.Disable("product URL not supported")
			return errs.Newf(errs.NotFound, "product URL not supported: %s", url)
		}
	}

	if p.handleProcessedSites(resp.ProcessedSites()) {
		return nil
	}

	// The resolution completed but no per-site record matched this URL.
	return errs.Newf(errs.NotFound, "no product record found for %s", url)
}

// handleProcessedSites scans per-site records for an entry whose canonical
// URL matches this product, merges it in and applies attribute defaults.
func (p *Product) handleProcessedSites(sites []api.ProcessedSite) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, site := range sites {
		if len(site.Products) == 0 {
			continue
		}

		// Per-site failed lookups carry {id, msg} entries.
		for _, failed := range site.URLsFailed {
			entry, ok := failed.(map[string]interface{})
			if !ok {
				continue
			}
			if id, _ := entry["id"].(string); id == p.url {
				msg, _ := entry["msg"].(string)
				p.disableLocked(msg)
				return false
			}
		}

		for _, record := range site.Products {
			recordURL, _ := record["product_url"].(string)
			if recordURL != p.url {
				continue
			}
			p.mergeProductInfo(record)
			p.siteInfo = site.SiteInfo
			p.applyDefaults()
			p.client.Logger().Debug("product fetched", logger.Fields{"url": p.url})
			return true
		}
	}
	return false
}

// mergeProductInfo merges remote product fields and maps the product_*
// aliases onto the canonical keys. Callers hold no lock invariant here; the
// two construction paths both own the Product exclusively.
func (p *Product) mergeProductInfo(record map[string]interface{}) {
	for k, v := range record {
		p.data[k] = v
	}
	if title, ok := p.data["product_title"]; ok {
		p.data["title"] = title
	}
	if desc, ok := p.data["product_description"]; ok {
		p.data["description"] = desc
	}
	if price, ok := p.data["product_price"]; ok {
		p.data["price"] = price
	}
	if p.dataStr("url") == "" {
		p.data["url"] = p.data["product_url"]
	}
	p.url = p.dataStr("url")

	if raw, ok := p.data["required_attributes"].(map[string]interface{}); ok {
		p.schema = ParseSchema(raw)
	}
	if raw, ok := p.data["attribute_dependencies"].(map[string]interface{}); ok {
		p.deps = ParseDependencies(raw)
	}
}

// applyDefaults selects every attribute's default value and extracts the
// color-keyed image and swatch maps.
func (p *Product) applyDefaults() {
	if p.schema == nil {
		return
	}
	for name, value := range p.schema.Defaults() {
		p.selections[name] = value
	}

	color, ok := p.schema["color"]
	if !ok {
		return
	}
	images := make(map[string]interface{})
	swatches := make(map[string]interface{})
	for value, raw := range color.Values {
		block, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if imgs, ok := block["images"].([]interface{}); ok {
			images[value] = imgs
			if _, has := p.data["image"]; !has && len(imgs) > 0 {
				p.data["image"] = imgs[0]
			}
		}
		if swatch, ok := block["swatch_image"]; ok {
			swatches[value] = swatch
		}
	}
	p.data["images"] = images
	p.data["swatches"] = swatches
}

// Select applies the proposed attribute pairs through the dependency
// resolver. An illegal value fails the whole call; nothing is applied.
// Forced changes to dependent attributes are returned so callers can
// surface them.
func (p *Product) Select(pairs map[string]string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := ResolveSelection(p.schema, p.deps, p.selections, pairs)
	if err != nil {
		return nil, err
	}
	p.selections = res.Selections
	return res.ForcedChanges, nil
}

// Serialize returns the current selection map, the wire form of a cart
// line item.
func (p *Product) Serialize() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.selections))
	for k, v := range p.selections {
		out[k] = v
	}
	return out
}

// Selections returns the current selections (alias of Serialize).
func (p *Product) Selections() map[string]string {
	return p.Serialize()
}

// Attributes returns the product's attribute schema; nil until loaded.
func (p *Product) Attributes() Schema {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schema
}

// Disable marks the product unsupported with a reason. Terminal.
func (p *Product) Disable(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableLocked(reason)
}

func (p *Product) disableLocked(reason string) {
	p.disabled = true
	if reason == "" {
		reason = "unsupported"
	}
	p.reason = reason
}

// IsSupported reports whether the product has not been disabled.
func (p *Product) IsSupported() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.disabled
}

// DisabledReason returns the disable reason, or "".
func (p *Product) DisabledReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// SiteInfo returns the raw site info block this product resolved under.
func (p *Product) SiteInfo() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.siteInfo
}

// SiteID returns the owning site id, or "" while unresolved.
func (p *Product) SiteID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.siteInfo == nil {
		return ""
	}
	id, _ := p.siteInfo["site_id"].(string)
	return id
}

// ProductID returns the remote product id, or "" while unresolved.
func (p *Product) ProductID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dataStr("product_id")
}

// CartHash derives the cart insertion key material. Returns ok=false while
// the product has no site info, in which case it cannot join a cart.
func (p *Product) CartHash() (siteID, productID string, product map[string]string, ok bool) {
	siteID = p.SiteID()
	if siteID == "" {
		return "", "", nil, false
	}
	return siteID, p.ProductID(), p.Serialize(), true
}

// Title returns the product title.
func (p *Product) Title() string { return p.field("title") }

// Description returns the product description.
func (p *Product) Description() string { return p.field("description") }

// Price returns the product price as reported by the remote system.
func (p *Product) Price() string { return p.field("price") }

// Image returns the primary product image URL.
func (p *Product) Image() string { return p.field("image") }

// Images returns the color-keyed image lists.
func (p *Product) Images() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := p.data["images"].(map[string]interface{})
	return m
}

// Swatches returns the color-keyed swatch images.
func (p *Product) Swatches() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := p.data["swatches"].(map[string]interface{})
	return m
}

func (p *Product) field(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dataStr(key)
}

func (p *Product) dataStr(key string) string {
	s, _ := p.data[key].(string)
	return s
}

// AddToCart adds this product directly to a remote cart.
func (p *Product) AddToCart(ctx context.Context, cartID string) (api.Response, error) {
	if cartID == "" {
		p.mu.Lock()
		cartID = p.cartID
		p.mu.Unlock()
	}
	if cartID == "" {
		return nil, errs.New(errs.MissingID, "no cart id for addToCart")
	}

	siteID, productID, serialized, ok := p.CartHash()
	if !ok {
		return nil, errs.Newf(errs.NotFound, "product %s has no site info", p.URL())
	}

	resp, err := p.client.Call(ctx, "products.addToCart", api.Params{
		"cart_id": cartID,
		"sites": map[string]interface{}{
			siteID: map[string]interface{}{
				"products": map[string]interface{}{productID: serialized},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if id := resp.Str("cart_id"); id != "" {
		p.mu.Lock()
		p.cartID = id
		p.mu.Unlock()
	}
	return resp, nil
}

// RemoveFromCart removes this product from a remote cart.
func (p *Product) RemoveFromCart(ctx context.Context, cartID string) (api.Response, error) {
	if cartID == "" {
		p.mu.Lock()
		cartID = p.cartID
		p.mu.Unlock()
	}
	if cartID == "" {
		return nil, errs.New(errs.MissingID, "no cart id for removeFromCart")
	}

	siteID, productID, _, ok := p.CartHash()
	if !ok {
		return nil, errs.Newf(errs.NotFound, "product %s has no site info", p.URL())
	}

	resp, err := p.client.Call(ctx, "products.removeFromCart", api.Params{
		"cart_id": cartID,
		"sites": map[string]interface{}{
			siteID: map[string]interface{}{productID: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	p.client.Logger().Debug("removed product from cart", logger.Fields{
		"site_id":    siteID,
		"product_id": productID,
	})
	return resp, nil
}
