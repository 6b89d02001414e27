// Package orders drives the two phase checkout: stage customer, payment
// and shipping information against a saved cart, then submit the staged
// order. Submission is only attempted once the cart has fully settled.
package orders

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/cart"
	"varinode/customers"
	"varinode/pkg/errs"
	"varinode/pkg/logger"
	"varinode/pkg/metrics"
)

// Order stages checkout information for a cart and submits it. The staged
// state lives remotely under a pre-order id; any change to the checkout
// information invalidates the previous staging.
type Order struct {
	client   *api.Client
	cart     *cart.Cart
	customer *customers.Customer

	mu         sync.Mutex
	preOrderID string
}

// New creates an order over the given cart.
func New(client *api.Client, c *cart.Cart) *Order {
	return &Order{client: client, cart: c}
}

// SetCustomer attaches the customer whose defaults fill in payment and
// shipping information not given explicitly.
func (o *Order) SetCustomer(c *customers.Customer) {
	o.mu.Lock()
	o.customer = c
	o.mu.Unlock()
}

// Customer returns the attached customer, nil when none is set.
func (o *Order) Customer() *customers.Customer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.customer
}

// Cart returns the cart this order checks out.
func (o *Order) Cart() *cart.Cart {
	return o.cart
}

// PreOrderID returns the id of the currently staged order, empty when
// nothing is staged.
func (o *Order) PreOrderID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.preOrderID
}

// SetCustomerInfo stages checkout information for the cart. Explicit values
// in info win; gaps are filled from the attached customer's default card
// and address. The cart must have settled and contain at least one product.
// On success the returned pre-order id is stored for Submit.
func (o *Order) SetCustomerInfo(ctx context.Context, info api.Params) (api.Response, error) {
	if err := o.cart.WhenReady(ctx); err != nil {
		return nil, err
	}
	if o.cart.Len() == 0 {
		return nil, errs.New(errs.EmptyCart, "cart has no products to check out")
	}

	cartID := o.cart.ID()
	if cartID == "" {
		cartID = o.client.State().CartID()
	}
	if cartID == "" {
		return nil, errs.New(errs.MissingID, "cart has not been saved")
	}

	params := api.Params{"cart_id": cartID}
	for k, v := range info {
		params[k] = v
	}
	o.fillPayment(params)
	o.fillShipping(params)
	if _, ok := params["sites"]; !ok {
		params["sites"] = o.cart.Sites().RequiredParameters(o.checkoutEmail(params))
	}

	// Any previously staged order no longer matches the information being
	// sent, so forget it before the call.
	o.mu.Lock()
	o.preOrderID = ""
	o.mu.Unlock()

	resp, err := o.client.Call(ctx, "orders.setInfo", params)
	if err != nil {
		return nil, err
	}
	if !resp.Complete() {
		return resp, siteFailures(resp, "staging checkout information failed")
	}

	o.mu.Lock()
	o.preOrderID = resp.Str("pre_order_id")
	o.mu.Unlock()
	o.client.Logger().Debug("checkout information staged", logger.Fields{
		"pre_order_id": resp.Str("pre_order_id"),
	})
	return resp, nil
}

// Submit places the staged order. Without a staged order it first stages
// one from the attached customer's defaults; with neither a staged order
// nor a customer it fails before any network traffic. A submission that
// does not complete on every site reports the per-site failures.
func (o *Order) Submit(ctx context.Context) (api.Response, error) {
	if o.PreOrderID() == "" {
		if o.Customer() == nil {
			return nil, errs.New(errs.MissingCustomer, "no staged order and no customer to stage one from")
		}
		if _, err := o.SetCustomerInfo(ctx, nil); err != nil {
			return nil, err
		}
	}

	resp, err := o.client.Call(ctx, "orders.submit", api.Params{
		"pre_order_id": o.PreOrderID(),
	})
	if err != nil {
		metrics.OrdersSubmittedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !resp.Complete() {
		metrics.OrdersSubmittedTotal.WithLabelValues(resp.Status()).Inc()
		return resp, siteFailures(resp, "order submission failed")
	}

	metrics.OrdersSubmittedTotal.WithLabelValues("complete").Inc()
	o.mu.Lock()
	o.preOrderID = ""
	o.mu.Unlock()
	return resp, nil
}

// Checkout stages the given information and submits in one step.
func (o *Order) Checkout(ctx context.Context, info api.Params) (api.Response, error) {
	if _, err := o.SetCustomerInfo(ctx, info); err != nil {
		return nil, err
	}
	return o.Submit(ctx)
}

func (o *Order) fillPayment(params api.Params) {
	if _, ok := params["payment"]; ok {
		return
	}
	if _, ok := params["card_id"]; ok {
		return
	}
	customer := o.Customer()
	if customer == nil {
		return
	}
	if id := customer.DefaultCardID(); id != "" {
		params["card_id"] = id
		return
	}
	if card := customer.DefaultCard(); card != nil {
		if payment := card.Payment(); payment != nil {
			params["payment"] = payment
		}
		if billing := card.BillingAddress(); billing != nil {
			params["billing_address"] = billing
		}
	}
}

func (o *Order) fillShipping(params api.Params) {
	if _, ok := params["shipping_address"]; ok {
		return
	}
	if _, ok := params["address_id"]; ok {
		return
	}
	customer := o.Customer()
	if customer == nil {
		return
	}
	if id := customer.DefaultAddressID(); id != "" {
		params["address_id"] = id
		return
	}
	if address := customer.DefaultAddress(); address != nil {
		params["shipping_address"] = address.Fields()
	}
}

func (o *Order) checkoutEmail(params api.Params) string {
	if email, ok := params["email"].(string); ok && email != "" {
		return email
	}
	if customer := o.Customer(); customer != nil {
		return customer.Email()
	}
	return ""
}

// siteFailures turns a non-complete order response into an error carrying
// the per-site result and message of every site that did not complete.
func siteFailures(resp api.Response, message string) error {
	details := map[string]interface{}{}
	for _, site := range resp.ProcessedSites() {
		if site.Result == "complete" {
			continue
		}
		details[site.SiteID()] = map[string]interface{}{
			"result":         site.Result,
			"result_message": site.ResultMessage,
		}
	}
	err := errs.Newf(errs.PartialOrder, "%s: %s", message, resp.Status())
	return err.WithDetails(details)
}
