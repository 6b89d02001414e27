package customers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varinode/pkg/errs"
)

func TestCustomerID(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]interface{}
		want   string
	}{
		{"direct", map[string]interface{}{"customer_id": "cus_1"}, "cus_1"},
		{"nested block", map[string]interface{}{"customer": map[string]interface{}{"customer_id": "cus_2"}}, "cus_2"},
		{"varinode alias", map[string]interface{}{"varinode_customer_id": "cus_3"}, "cus_3"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCustomer(nil, tt.fields).ID())
		})
	}
}

func TestCustomerGetOnce(t *testing.T) {
	client, calls := newCustomersClient(t, map[string]http.HandlerFunc{
		"customers.get": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{
				"status": "complete",
				"customer": map[string]interface{}{
					"customer_id":    "cus_1",
					"customer_email": "shopper@example.com",
				},
			})
		},
		"cards.getList": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{
				"status": "complete",
				"cards":  []interface{}{map[string]interface{}{"card_id": "card_1"}},
			})
		},
		"addresses.getList": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{
				"status":    "complete",
				"addresses": []interface{}{map[string]interface{}{"address_id": "a1"}},
			})
		},
	})

	customer := NewCustomer(client, nil)
	require.NoError(t, customer.Get(context.Background(), "cus_1"))

	assert.Equal(t, "cus_1", customer.ID())
	assert.Equal(t, "shopper@example.com", customer.Email())
	assert.Equal(t, 1, customer.Cards.Len())
	assert.Equal(t, 1, customer.Addresses.Len())

	// The record is fetched once.
	require.NoError(t, customer.Get(context.Background(), "cus_1"))
	assert.Equal(t, 1, *calls["customers.get"])
}

func TestCustomerGetRequiresID(t *testing.T) {
	err := NewCustomer(nil, nil).Get(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errs.MissingID, errs.Code(err))
}

func TestCustomerDefaults(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"cards.add": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{"status": "complete", "card_id": "card_1"})
		},
		"addresses.add": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{
				"status":  "complete",
				"address": map[string]interface{}{"address_id": "a1"},
			})
		},
	})

	customer := NewCustomer(client, map[string]interface{}{"customer_id": "cus_1"})

	card := NewCard(client, cardFields())
	require.NoError(t, customer.AddCard(context.Background(), card, false))
	addr := NewAddress(client, map[string]interface{}{"city": "Portland"})
	require.NoError(t, customer.AddAddress(context.Background(), addr, false))

	// The first card/address becomes the default even unflagged.
	assert.Same(t, card, customer.DefaultCard())
	assert.Same(t, addr, customer.DefaultAddress())
	assert.Equal(t, "card_1", customer.DefaultCardID())
	assert.Equal(t, "a1", customer.DefaultAddressID())
	assert.Equal(t, "cus_1", card.Field("customer_id"))
}

func TestCustomerDefaultIDPreference(t *testing.T) {
	customer := NewCustomer(nil, map[string]interface{}{
		"customer_id":        "cus_1",
		"default_card_id":    "card_9",
		"default_address_id": "a9",
	})

	// The explicitly stored default ids win over the (empty) lists.
	assert.Equal(t, "card_9", customer.DefaultCardID())
	assert.Equal(t, "a9", customer.DefaultAddressID())
	assert.Nil(t, customer.DefaultCard())
	assert.Nil(t, customer.DefaultAddress())
}

func TestCustomerSave(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"customers.add": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "shopper@example.com", r.PostForm.Get("customer_email"))
			respondJSON(t, w, map[string]interface{}{
				"status":   "complete",
				"customer": map[string]interface{}{"customer_id": "cus_new"},
			})
		},
	})

	customer := NewCustomer(client, map[string]interface{}{"customer_email": "shopper@example.com"})
	require.NoError(t, customer.Save(context.Background()))
	assert.Equal(t, "cus_new", customer.ID())
}

func TestCustomerUpdate(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"customers.update": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "cus_1", r.PostForm.Get("customer_id"))
			assert.Equal(t, "555-0100", r.PostForm.Get("customer_phone"))
			respondJSON(t, w, map[string]interface{}{
				"status":         "complete",
				"customer_phone": "555-0100",
			})
		},
	})

	customer := NewCustomer(client, map[string]interface{}{"customer_id": "cus_1"})
	require.NoError(t, customer.Update(context.Background(), map[string]interface{}{
		"customer_phone": "555-0100",
	}))
	assert.Equal(t, "555-0100", customer.Field("customer_phone"))
}
