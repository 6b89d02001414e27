package customers

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/pkg/errs"
)

// Card wraps a remote payment card. A card is configured from a payment
// block plus a billing_address block; after a successful save the remote
// echo (card_id, card_last4, card_funding, card_fingerprint, ...) is merged
// in and the raw payment data is what the remote chose to return.
type Card struct {
	client *api.Client

	mu     sync.Mutex
	fields map[string]interface{}
}

// NewCard creates a Card, optionally pre-populated from a config mapping.
// A wrapped {"card": {...}} record is unwrapped.
func NewCard(client *api.Client, fields map[string]interface{}) *Card {
	c := &Card{
		client: client,
		fields: make(map[string]interface{}),
	}
	c.Configure(fields)
	return c
}

// Configure deep-merges the given fields into the card.
func (c *Card) Configure(fields map[string]interface{}) {
	if fields == nil {
		return
	}
	if inner, ok := fields["card"].(map[string]interface{}); ok {
		fields = inner
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	mergeFields(c.fields, fields)
}

// ID returns the remote card id, or "".
func (c *Card) ID() string {
	return c.Field("card_id")
}

// IsDefault reports whether this is the customer's default card.
func (c *Card) IsDefault() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return truthy(c.fields["card_is_default"])
}

// SetDefault flags this card as the customer default.
func (c *Card) SetDefault(isDefault bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields["card_is_default"] = isDefault
}

// Field returns a string field value, or "".
func (c *Card) Field(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, _ := c.fields[key].(string)
	return s
}

// SetField sets a single field.
func (c *Card) SetField(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[key] = value
}

// Payment returns the payment block (card_type, card_number or card_last4,
// expiry, cvv).
func (c *Card) Payment() map[string]interface{} {
	return c.block("payment")
}

// BillingAddress returns the billing address block.
func (c *Card) BillingAddress() map[string]interface{} {
	return c.block("billing_address")
}

func (c *Card) block(key string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.fields[key].(map[string]interface{})
	return m
}

// Save persists the card via cards.add, or delegates to Update when the
// card already has an identity. On success the assigned card_id and remote
// echo are merged back.
func (c *Card) Save(ctx context.Context) error {
	if c.ID() != "" {
		// Already saved once; the identity is immutable, so this is an update.
		fields := make(map[string]interface{})
		if payment := c.Payment(); payment != nil {
			fields["payment"] = payment
		}
		if billing := c.BillingAddress(); billing != nil {
			fields["billing_address"] = billing
		}
		return c.Update(ctx, fields)
	}

	c.mu.Lock()
	params := api.Params{
		"card_is_default": truthy(c.fields["card_is_default"]),
	}
	if payment, ok := c.fields["payment"].(map[string]interface{}); ok {
		params["payment"] = copyFields(payment)
	}
	if billing, ok := c.fields["billing_address"].(map[string]interface{}); ok {
		params["billing_address"] = copyFields(billing)
	}
	if cid, _ := c.fields["customer_id"].(string); cid != "" {
		params["card_customer_id"] = cid
	}
	c.mu.Unlock()

	resp, err := c.client.Call(ctx, "cards.add", params)
	if err != nil {
		return err
	}
	if !resp.Complete() {
		return errs.New(errs.RemoteAPI, "card save did not complete")
	}

	c.mu.Lock()
	if id := resp.Str("card_id"); id != "" {
		c.fields["card_id"] = id
	}
	c.mu.Unlock()
	c.mergeResponse(resp)
	return nil
}

// Get merges the remote record for the given id (or the stored id) into
// this card.
func (c *Card) Get(ctx context.Context, id string) error {
	if id == "" {
		id = c.ID()
	}
	if id == "" {
		return errs.New(errs.MissingID, "no card id provided or stored")
	}

	resp, err := c.client.Call(ctx, "cards.get", api.Params{"card_id": id})
	if err != nil {
		return err
	}
	c.mergeResponse(resp)
	return nil
}

// Update sends the given payment/billing fields to the remote record and
// merges the validated result back, so only remote-accepted updates affect
// this instance. An empty field set is a no-op; a block missing from a
// non-empty set falls back to the stored one. An identity-less card cannot
// be updated.
func (c *Card) Update(ctx context.Context, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if c.ID() == "" {
		return errs.New(errs.MissingID, "cannot update a card without an id")
	}

	params := api.Params{"card_id": c.ID()}
	if billing, ok := fields["billing_address"].(map[string]interface{}); ok {
		params["billing_address"] = billing
	} else if stored := c.BillingAddress(); stored != nil {
		params["billing_address"] = stored
	}
	if payment, ok := fields["payment"].(map[string]interface{}); ok {
		params["payment"] = payment
	} else if stored := c.Payment(); stored != nil {
		params["payment"] = stored
	}

	resp, err := c.client.Call(ctx, "cards.update", params)
	if err != nil {
		return err
	}
	c.mergeResponse(resp)
	return nil
}

// Delete removes the card remotely. An id-less delete fails fast; a
// non-complete status is an error.
func (c *Card) Delete(ctx context.Context) error {
	id := c.ID()
	if id == "" {
		return errs.New(errs.MissingID, "no card id provided or stored")
	}

	resp, err := c.client.Call(ctx, "cards.remove", api.Params{"card_id": id})
	if err != nil {
		return err
	}
	if !resp.Complete() {
		reason := resp.Str("status_message")
		if reason == "" {
			reason = "no reason given"
		}
		return errs.Newf(errs.RemoteAPI, "error removing card (%s): %s", id, reason)
	}
	return nil
}

// mergeResponse merges the card block of a complete response.
func (c *Card) mergeResponse(resp api.Response) {
	if !resp.Complete() {
		return
	}
	if card := resp.Map("card"); card != nil {
		c.mu.Lock()
		mergeFields(c.fields, card)
		c.mu.Unlock()
	}
}
