package customers

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/pkg/errs"
)

// AddressList is the remote-backed address collection of one customer.
type AddressList = List[*Address]

// CardList is the remote-backed card collection of one customer.
type CardList = List[*Card]

// NewAddressList builds the address list cache for a customer id.
func NewAddressList(client *api.Client, customerID string) *AddressList {
	return NewList(client, "address", "addresses", customerID, func(record map[string]interface{}) *Address {
		return NewAddress(client, record)
	})
}

// NewCardList builds the card list cache for a customer id.
func NewCardList(client *api.Client, customerID string) *CardList {
	return NewList(client, "card", "cards", customerID, func(record map[string]interface{}) *Card {
		return NewCard(client, record)
	})
}

// Customer wraps a remote customer record (customer_email, customer_phone,
// customer_description, customer_status, ...) together with its card and
// address collections.
type Customer struct {
	client *api.Client

	mu        sync.Mutex
	fields    map[string]interface{}
	fetched   bool
	Cards     *CardList
	Addresses *AddressList
}

// NewCustomer creates a Customer from a config mapping. The id may come in
// as customer_id, a nested customer block, or varinode_customer_id.
func NewCustomer(client *api.Client, fields map[string]interface{}) *Customer {
	c := &Customer{
		client: client,
		fields: make(map[string]interface{}),
	}
	if fields != nil {
		mergeFields(c.fields, fields)
		if vid, _ := c.fields["varinode_customer_id"].(string); vid != "" {
			c.fields["customer_id"] = vid
		}
	}
	c.Cards = NewCardList(client, c.ID())
	c.Addresses = NewAddressList(client, c.ID())
	return c
}

// ID resolves the customer id from the known field spellings.
func (c *Customer) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, _ := c.fields["customer_id"].(string); id != "" {
		return id
	}
	if customer, ok := c.fields["customer"].(map[string]interface{}); ok {
		if id, _ := customer["customer_id"].(string); id != "" {
			return id
		}
	}
	id, _ := c.fields["varinode_customer_id"].(string)
	return id
}

// Email returns the customer's email address.
func (c *Customer) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, _ := c.fields["customer_email"].(string)
	return s
}

// Field returns a string field value, or "".
func (c *Customer) Field(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, _ := c.fields[key].(string)
	return s
}

// Fields returns a copy of the raw field mapping.
func (c *Customer) Fields() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyFields(c.fields)
}

// DefaultCard returns the default card from the card collection, or nil.
func (c *Customer) DefaultCard() *Card {
	card, ok := c.Cards.Default()
	if !ok {
		return nil
	}
	return card
}

// DefaultAddress returns the default address, or nil.
func (c *Customer) DefaultAddress() *Address {
	addr, ok := c.Addresses.Default()
	if !ok {
		return nil
	}
	return addr
}

// DefaultCardID prefers an explicitly stored default card id over the
// default card's own id.
func (c *Customer) DefaultCardID() string {
	if id := c.Field("default_card_id"); id != "" {
		return id
	}
	if card := c.DefaultCard(); card != nil {
		return card.ID()
	}
	return ""
}

// DefaultAddressID prefers an explicitly stored default address id over
// the default address's own id.
func (c *Customer) DefaultAddressID() string {
	if id := c.Field("default_address_id"); id != "" {
		return id
	}
	if addr := c.DefaultAddress(); addr != nil {
		return addr.ID()
	}
	return ""
}

// AddAddress links the address to this customer and adds it to the address
// collection. The first address, or one explicitly flagged, becomes the
// default.
func (c *Customer) AddAddress(ctx context.Context, address *Address, isDefault bool) error {
	address.SetField("customer_id", c.ID())
	if isDefault || address.IsDefault() || c.Addresses.Len() == 0 {
		address.SetDefault(true)
		c.mu.Lock()
		c.fields["default_address_id"] = address.ID()
		c.mu.Unlock()
	}
	return c.Addresses.Add(ctx, address)
}

// AddCard links the card to this customer and adds it to the card
// collection. The first card, or one explicitly flagged, becomes the
// default.
func (c *Customer) AddCard(ctx context.Context, card *Card, isDefault bool) error {
	if card.Field("customer_id") == "" {
		card.SetField("customer_id", c.ID())
	}
	if isDefault || card.IsDefault() || c.Cards.Len() == 0 {
		card.SetDefault(true)
		c.mu.Lock()
		c.fields["default_card_id"] = card.ID()
		c.mu.Unlock()
	}
	return c.Cards.Add(ctx, card)
}

// Save persists the customer via customers.add. The remote system assigns
// the customer id.
func (c *Customer) Save(ctx context.Context) error {
	c.mu.Lock()
	payload := copyFields(c.fields)
	c.mu.Unlock()

	resp, err := c.client.Call(ctx, "customers.add", api.Params(payload))
	if err != nil {
		return err
	}
	c.mergeResponse(resp)
	return nil
}

// Get loads the customer record and merges it in, and kicks off the card
// and address collection loads. A repeat Get is served from the already
// fetched state.
func (c *Customer) Get(ctx context.Context, customerID string) error {
	c.mu.Lock()
	if c.fetched {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if customerID == "" {
		customerID = c.ID()
	}
	if customerID == "" {
		return errs.New(errs.MissingID, "no customer id provided or stored")
	}

	resp, err := c.client.Call(ctx, "customers.get", api.Params{"customer_id": customerID})
	if err != nil {
		return err
	}
	c.mergeResponse(resp)
	c.mu.Lock()
	c.fetched = true
	c.mu.Unlock()

	ref := ByID(c.ID())
	if _, err := c.Cards.Load(ctx, ref); err != nil {
		return err
	}
	if _, err := c.Addresses.Load(ctx, ref); err != nil {
		return err
	}
	return nil
}

// Update pushes the given fields to the remote record.
func (c *Customer) Update(ctx context.Context, fields map[string]interface{}) error {
	params := api.Params{}
	for k, v := range fields {
		params[k] = v
	}
	if _, ok := params["customer_id"]; !ok {
		params["customer_id"] = c.ID()
	}

	resp, err := c.client.Call(ctx, "customers.update", params)
	if err != nil {
		return err
	}
	c.mergeResponse(resp)
	return nil
}

// mergeResponse merges top-level customer data. Any response carrying a
// customer block assigns our id when we don't have one yet.
func (c *Customer) mergeResponse(resp api.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if customer := resp.Map("customer"); customer != nil {
		mergeFields(c.fields, customer)
		if _, ok := c.fields["customer_id"]; !ok {
			if id, _ := customer["customer_id"].(string); id != "" {
				c.fields["customer_id"] = id
			}
		}
	}
	for _, key := range []string{"customer_id", "customer_email", "customer_phone", "customer_description", "customer_status"} {
		if v, ok := resp[key]; ok {
			if isIDKey(key) {
				if s, _ := v.(string); s == "" {
					continue
				}
			}
			c.fields[key] = v
		}
	}
}
