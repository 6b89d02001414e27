package customers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varinode/pkg/errs"
)

func cardFields() map[string]interface{} {
	return map[string]interface{}{
		"payment": map[string]interface{}{
			"card_type":   "visa",
			"card_number": "4242424242424242",
			"expiry":      "12/28",
			"cvv":         "123",
		},
		"billing_address": map[string]interface{}{
			"city": "Portland",
		},
		"customer_id": "cus_1",
	}
}

func TestCardSaveThenUpdate(t *testing.T) {
	client, calls := newCustomersClient(t, map[string]http.HandlerFunc{
		"cards.add": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "visa", r.PostForm.Get("payment[card_type]"))
			assert.Equal(t, "Portland", r.PostForm.Get("billing_address[city]"))
			assert.Equal(t, "cus_1", r.PostForm.Get("card_customer_id"))
			respondJSON(t, w, map[string]interface{}{
				"status":  "complete",
				"card_id": "card_1",
				"card":    map[string]interface{}{"card_last4": "4242", "card_funding": "credit"},
			})
		},
		"cards.update": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "card_1", r.PostForm.Get("card_id"))
			respondJSON(t, w, map[string]interface{}{
				"status": "complete",
				"card":   map[string]interface{}{"card_last4": "4242"},
			})
		},
	})

	card := NewCard(client, cardFields())
	require.NoError(t, card.Save(context.Background()))
	assert.Equal(t, "card_1", card.ID())
	assert.Equal(t, "4242", card.Field("card_last4"))

	// A second save goes through the update path; identity is immutable.
	require.NoError(t, card.Save(context.Background()))
	assert.Equal(t, 1, *calls["cards.add"])
	assert.Equal(t, 1, *calls["cards.update"])
}

func TestCardSaveIncomplete(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"cards.add": func(w http.ResponseWriter, r *http.Request) {
			respondJSON(t, w, map[string]interface{}{"status": "errors"})
		},
	})

	card := NewCard(client, cardFields())
	err := card.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.RemoteAPI, errs.Code(err))
	assert.Equal(t, "", card.ID())
}

func TestCardUpdateRequiresID(t *testing.T) {
	card := NewCard(nil, cardFields())
	err := card.Update(context.Background(), map[string]interface{}{
		"payment": map[string]interface{}{"expiry": "01/30"},
	})
	require.Error(t, err)
	assert.Equal(t, errs.MissingID, errs.Code(err))
}

func TestCardUpdateEmptyFieldsNoOp(t *testing.T) {
	// No id and no server; an empty update must return without touching either.
	card := NewCard(nil, cardFields())
	require.NoError(t, card.Update(context.Background(), nil))
	require.NoError(t, card.Update(context.Background(), map[string]interface{}{}))
}

func TestCardUpdateMergesOnlyValidated(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"cards.update": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "01/30", r.PostForm.Get("payment[expiry]"))
			// The remote rejected the update.
			respondJSON(t, w, map[string]interface{}{
				"status": "errors",
				"card":   map[string]interface{}{"card_last4": "9999"},
			})
		},
	})

	card := NewCard(client, cardFields())
	card.SetField("card_id", "card_1")
	card.SetField("card_last4", "4242")

	err := card.Update(context.Background(), map[string]interface{}{
		"payment": map[string]interface{}{"expiry": "01/30"},
	})
	require.NoError(t, err)
	// Nothing from a non-complete response merges back.
	assert.Equal(t, "4242", card.Field("card_last4"))
}

func TestCardGet(t *testing.T) {
	client, _ := newCustomersClient(t, map[string]http.HandlerFunc{
		"cards.get": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "card_7", r.PostForm.Get("card_id"))
			respondJSON(t, w, map[string]interface{}{
				"status": "complete",
				"card":   map[string]interface{}{"card_id": "card_7", "card_last4": "1111"},
			})
		},
	})

	card := NewCard(client, nil)
	require.NoError(t, card.Get(context.Background(), "card_7"))
	assert.Equal(t, "card_7", card.ID())
	assert.Equal(t, "1111", card.Field("card_last4"))

	err := NewCard(client, nil).Get(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, errs.MissingID, errs.Code(err))
}
