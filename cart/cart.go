// Package cart accumulates products into a remote shopping cart and keeps
// the remote cart in step with local mutations. Product lookups settle in
// the background while cart calls run one at a time in submission order.
package cart

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/catalog"
	"varinode/pkg/errs"
	"varinode/pkg/logger"
	"varinode/pkg/metrics"
)

// Cart holds products grouped by site and mirrors them to a remote cart.
// AddProduct starts the product lookup in the background; Save waits for
// outstanding lookups before talking to the server, so callers can add
// products and save without sequencing the lookups themselves.
type Cart struct {
	client *api.Client

	mu       sync.Mutex
	id       string
	details  map[string]interface{}
	products map[string]map[string]*catalog.Product

	sites   *catalog.Sites
	fetches *tracker
	queue   *taskQueue
}

// New creates an empty cart. Any initial products are added as if through
// AddProduct, their lookups starting immediately.
func New(client *api.Client, products ...*catalog.Product) *Cart {
	c := &Cart{
		client:   client,
		products: make(map[string]map[string]*catalog.Product),
		sites:    catalog.NewSites(),
		fetches:  newTracker(),
		queue:    newTaskQueue(),
	}
	for _, p := range products {
		c.AddProduct(context.Background(), p)
	}
	return c
}

// ID returns the remote cart id, empty until the first successful Save or
// Load against the remote system.
func (c *Cart) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Details returns the cart level details reported by the remote system.
func (c *Cart) Details() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.details
}

// AddProduct registers the product and starts its lookup in the background.
// The product joins the cart's site grouping once its lookup settles with
// site info; unsupported products are skipped with a log line.
func (c *Cart) AddProduct(ctx context.Context, p *catalog.Product) {
	c.fetches.add()
	go func() {
		defer c.fetches.done()
		if err := p.Fetch(ctx); err != nil {
			c.client.Logger().Warn("product lookup failed", logger.Fields{
				"url":   logger.Truncate(p.URL(), 120),
				"error": err.Error(),
			})
			return
		}
		c.insert(p)
	}()
}

func (c *Cart) insert(p *catalog.Product) {
	siteID, productID, _, ok := p.CartHash()
	if !ok || productID == "" {
		c.client.Logger().Warn("product has no cart identity, skipping", logger.Fields{
			"url": logger.Truncate(p.URL(), 120),
		})
		return
	}
	c.mu.Lock()
	group := c.products[siteID]
	if group == nil {
		group = make(map[string]*catalog.Product)
		c.products[siteID] = group
	}
	group[productID] = p
	c.mu.Unlock()
}

// Ready reports whether every product lookup and every cart call has
// settled. A cart is only safe to read or check out when ready.
func (c *Cart) Ready() bool {
	return c.fetches.Idle() && c.queue.Idle()
}

// WhenReady blocks until the cart is ready or the context ends.
func (c *Cart) WhenReady(ctx context.Context) error {
	for {
		if err := c.fetches.Wait(ctx); err != nil {
			return err
		}
		if err := c.queue.Wait(ctx); err != nil {
			return err
		}
		if c.Ready() {
			return nil
		}
	}
}

// Products returns the site-grouped products, or nil while lookups or cart
// calls are still settling.
func (c *Cart) Products() map[string]map[string]*catalog.Product {
	if !c.Ready() {
		return nil
	}
	return c.productsSnapshot()
}

// PromisedProducts waits for the cart to become ready and then returns the
// site-grouped products.
func (c *Cart) PromisedProducts(ctx context.Context) (map[string]map[string]*catalog.Product, error) {
	if err := c.WhenReady(ctx); err != nil {
		return nil, err
	}
	return c.productsSnapshot(), nil
}

func (c *Cart) productsSnapshot() map[string]map[string]*catalog.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]*catalog.Product, len(c.products))
	for siteID, group := range c.products {
		g := make(map[string]*catalog.Product, len(group))
		for id, p := range group {
			g[id] = p
		}
		out[siteID] = g
	}
	return out
}

// Len returns the number of products currently grouped into the cart.
// Products whose lookups have not settled are not counted.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, group := range c.products {
		n += len(group)
	}
	return n
}

// Sites returns the site registry aggregated from the cart's products,
// refreshed from the current grouping.
func (c *Cart) Sites() *catalog.Sites {
	c.sites.UpdateFromProducts(c.productsSnapshot())
	return c.sites
}

// Save pushes the cart's products to the remote cart. It waits for
// outstanding product lookups first, reuses the known cart id when there is
// one, and records the id assigned by the remote system on first save.
func (c *Cart) Save(ctx context.Context) (api.Response, error) {
	if err := c.fetches.Wait(ctx); err != nil {
		return nil, err
	}

	conf := api.Params{}
	sites := map[string]interface{}{}
	for siteID, group := range c.productsSnapshot() {
		prods := map[string]interface{}{}
		for _, p := range group {
			_, productID, serialized, ok := p.CartHash()
			if !ok {
				continue
			}
			prods[productID] = serialized
		}
		if len(prods) > 0 {
			sites[siteID] = map[string]interface{}{"products": prods}
		}
	}
	conf["sites"] = sites
	if id := c.ID(); id != "" {
		conf["cart_id"] = id
	}

	var resp api.Response
	err := c.queue.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.Call(ctx, "products.addToCart", conf)
		return callErr
	})
	if err != nil {
		metrics.CartSavesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !resp.Complete() {
		metrics.CartSavesTotal.WithLabelValues(resp.Status()).Inc()
		c.client.Logger().Warn("cart save did not complete", logger.Fields{
			"status": resp.Status(),
		})
		return resp, nil
	}

	metrics.CartSavesTotal.WithLabelValues("complete").Inc()
	c.mu.Lock()
	if c.id == "" {
		c.id = resp.Str("cart_id")
	}
	if details := resp.Map("cart_details"); details != nil {
		c.details = details
	}
	c.mu.Unlock()
	return resp, nil
}

// Load replaces the cart's contents with a cart already stored remotely.
// Each remote record becomes a settled product carrying the stored
// selections.
func (c *Cart) Load(ctx context.Context, cartID string) error {
	if cartID == "" {
		return errs.New(errs.MissingID, "no cart id to load")
	}

	var resp api.Response
	err := c.queue.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.Call(ctx, "products.getCart", api.Params{"cart_id": cartID})
		return callErr
	})
	if err != nil {
		return err
	}
	if !resp.Complete() {
		return errs.Newf(errs.RemoteAPI, "cart load failed: %s", resp.Str("status_message"))
	}

	products := make(map[string]map[string]*catalog.Product)
	for _, site := range resp.ProcessedSites() {
		for _, record := range site.Products {
			p := catalog.NewProductFromData(c.client, record, site.SiteInfo)
			if details, ok := record["product_details"].(map[string]interface{}); ok {
				if _, err := p.Select(stringMap(details)); err != nil {
					c.client.Logger().Debug("stored selection rejected", logger.Fields{
						"product_id": p.ProductID(),
						"error":      err.Error(),
					})
				}
			}
			siteID, productID, _, ok := p.CartHash()
			if !ok || productID == "" {
				continue
			}
			if products[siteID] == nil {
				products[siteID] = make(map[string]*catalog.Product)
			}
			products[siteID][productID] = p
		}
	}

	c.mu.Lock()
	c.id = cartID
	c.products = products
	if details := resp.Map("cart_details"); details != nil {
		c.details = details
	}
	c.mu.Unlock()
	return nil
}

// RemoveByID drops the product from the cart and from the remote cart when
// one exists. It waits for the cart to settle first so a product still in
// flight can be found. Returns false when no product matches.
func (c *Cart) RemoveByID(ctx context.Context, productID string) (bool, error) {
	if err := c.WhenReady(ctx); err != nil {
		return false, err
	}

	c.mu.Lock()
	var found *catalog.Product
	for siteID, group := range c.products {
		if p, ok := group[productID]; ok {
			found = p
			delete(group, productID)
			if len(group) == 0 {
				delete(c.products, siteID)
			}
			break
		}
	}
	cartID := c.id
	c.mu.Unlock()

	if found == nil {
		return false, nil
	}
	if cartID == "" {
		return true, nil
	}
	err := c.queue.Do(ctx, func() error {
		_, callErr := found.RemoveFromCart(ctx, cartID)
		return callErr
	})
	return true, err
}

func stringMap(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
