package customers

import (
	"context"
	"sync"

	"varinode/api"
	"varinode/pkg/errs"
)

// Address wraps a remote address record as a flat field mapping
// (first_name, last_name, address_line1, address_line2, city, state,
// country_code, zip_postal_code, phone, ...). The address_id identity is
// assigned by the remote system on first save.
type Address struct {
	client *api.Client

	mu     sync.Mutex
	fields map[string]interface{}
}

// NewAddress creates an Address, optionally pre-populated from a config
// mapping. A wrapped {"address": {...}} record is unwrapped.
func NewAddress(client *api.Client, fields map[string]interface{}) *Address {
	a := &Address{
		client: client,
		fields: make(map[string]interface{}),
	}
	a.Configure(fields)
	return a
}

// Configure deep-merges the given fields into the address. An established
// identity is never overwritten with an empty value.
func (a *Address) Configure(fields map[string]interface{}) {
	if fields == nil {
		return
	}
	if inner, ok := fields["address"].(map[string]interface{}); ok {
		fields = inner
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	mergeFields(a.fields, fields)
}

// ID returns the remote address id, or "".
func (a *Address) ID() string {
	return a.Field("address_id")
}

// IsDefault reports whether this is the customer's default address.
func (a *Address) IsDefault() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return truthy(a.fields["address_is_default"])
}

// SetDefault flags this address as the customer default.
func (a *Address) SetDefault(isDefault bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fields["address_is_default"] = isDefault
}

// Field returns a string field value, or "".
func (a *Address) Field(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, _ := a.fields[key].(string)
	return s
}

// SetField sets a single field.
func (a *Address) SetField(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fields[key] = value
}

// Fields returns a copy of the raw field mapping.
func (a *Address) Fields() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyFields(a.fields)
}

// Save persists the address via addresses.add. The customer id field, when
// present, links the address to that customer. On success the remote echo
// (including the assigned address_id) is merged back.
func (a *Address) Save(ctx context.Context) error {
	a.mu.Lock()
	params := api.Params{
		"address_is_default": truthy(a.fields["address_is_default"]),
		"address":            copyFields(a.fields),
	}
	if cid, _ := a.fields["customer_id"].(string); cid != "" {
		params["address_customer_id"] = cid
	}
	a.mu.Unlock()

	resp, err := a.client.Call(ctx, "addresses.add", params)
	if err != nil {
		return err
	}
	a.mergeResponse(resp)
	return nil
}

// Load merges the remote record for the given id (or the stored id) into
// this address. An id-less load fails fast without a network round trip.
func (a *Address) Load(ctx context.Context, id string) error {
	if id == "" {
		id = a.ID()
	}
	if id == "" {
		return errs.New(errs.MissingID, "no address id provided or stored")
	}

	resp, err := a.client.Call(ctx, "addresses.get", api.Params{"address_id": id})
	if err != nil {
		return err
	}
	a.mergeResponse(resp)
	return nil
}

// CityStateLookup fills city and state from a ZIP code, using the stored
// zip_postal_code when none is given.
func (a *Address) CityStateLookup(ctx context.Context, zip string) error {
	if zip == "" {
		zip = a.Field("zip_postal_code")
	}

	resp, err := a.client.Call(ctx, "addresses.cityStateLookup", api.Params{
		"address": map[string]interface{}{"zip_postal_code": zip},
	})
	if err != nil {
		return err
	}
	a.mergeResponse(resp)
	return nil
}

// Verify conforms the address to the postal standard. When reformat is
// true (the default behavior of the API surface), the standardized fields
// are merged back into this address.
func (a *Address) Verify(ctx context.Context, reformat bool) (map[string]interface{}, error) {
	a.mu.Lock()
	payload := copyFields(a.fields)
	a.mu.Unlock()

	resp, err := a.client.Call(ctx, "addresses.verify", api.Params{"address": payload})
	if err != nil {
		return nil, err
	}
	if reformat {
		a.mergeResponse(resp)
	}
	return resp.Map("address"), nil
}

// Delete removes the address remotely. An id-less delete fails fast; a
// non-complete status is an error.
func (a *Address) Delete(ctx context.Context) error {
	id := a.ID()
	if id == "" {
		return errs.New(errs.MissingID, "no address id provided or stored")
	}

	resp, err := a.client.Call(ctx, "addresses.remove", api.Params{"address_id": id})
	if err != nil {
		return err
	}
	if !resp.Complete() {
		reason := resp.Str("status_message")
		if reason == "" {
			reason = "no reason given"
		}
		return errs.Newf(errs.RemoteAPI, "error removing address (%s): %s", id, reason)
	}
	return nil
}

// mergeResponse merges the address block of a complete response.
func (a *Address) mergeResponse(resp api.Response) {
	if !resp.Complete() {
		return
	}
	if address := resp.Map("address"); address != nil {
		a.mu.Lock()
		mergeFields(a.fields, address)
		a.mu.Unlock()
	}
}

// mergeFields deep-merges src into dst. Identity fields are never
// overwritten with an empty value.
func mergeFields(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok {
			existing, ok := dst[k].(map[string]interface{})
			if !ok {
				existing = make(map[string]interface{}, len(sub))
				dst[k] = existing
			}
			mergeFields(existing, sub)
			continue
		}
		if isIDKey(k) {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			if v == nil {
				continue
			}
		}
		dst[k] = v
	}
}

func isIDKey(k string) bool {
	return len(k) > 3 && k[len(k)-3:] == "_id"
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sub, ok := v.(map[string]interface{}); ok {
			out[k] = copyFields(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "0" && val != "false"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}
