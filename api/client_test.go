package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varinode/pkg/config"
	"varinode/pkg/errs"
	"varinode/pkg/signing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.New("app-1", "pub-secret", "priv-secret")
	cfg.BaseURL = srv.URL
	cfg.PrivateBaseURL = srv.URL
	return NewClient(cfg), srv
}

func TestCallSignsBaseParams(t *testing.T) {
	var got *http.Request
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"status":"complete"}`))
	})

	resp, err := client.Call(context.Background(), "products.getFromURLs", nil)
	require.NoError(t, err)
	assert.True(t, resp.Complete())

	require.NotNil(t, got)
	q := got.URL.Query()
	assert.Equal(t, "app-1", q.Get("appid"))
	assert.Equal(t, "json", q.Get("format"))
	assert.Equal(t, "products.getFromURLs", q.Get("method"))

	want := signing.Sign("pub-secret", map[string]string{
		"appid":  "app-1",
		"format": "json",
		"method": "products.getFromURLs",
	})
	assert.Equal(t, want, q.Get("tt_sig"))
}

func TestCallRoutesPrivateDomains(t *testing.T) {
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"endpoint":"public"}`))
	}))
	defer public.Close()

	var privSig string
	private := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		privSig = r.URL.Query().Get("tt_sig")
		w.Write([]byte(`{"endpoint":"private"}`))
	}))
	defer private.Close()

	cfg := config.New("app-1", "pub-secret", "priv-secret")
	cfg.BaseURL = public.URL
	cfg.PrivateBaseURL = private.URL
	client := NewClient(cfg)

	for method, want := range map[string]string{
		"products.getFromURLs": "public",
		"orders.submit":        "public",
		"cards.getList":        "private",
		"customers.get":        "private",
		"addresses.add":        "private",
	} {
		resp, err := client.Call(context.Background(), method, nil)
		require.NoError(t, err, method)
		assert.Equal(t, want, resp.Str("endpoint"), method)
	}

	want := signing.Sign("priv-secret", map[string]string{
		"appid":  "app-1",
		"format": "json",
		"method": "addresses.add",
	})
	assert.Equal(t, want, privSig)
}

func TestCallPostBody(t *testing.T) {
	var form map[string][]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"status":"complete"}`))
	})

	_, err := client.Call(context.Background(), "products.addToCart", Params{
		"cart_id": "cart_1",
		"sites": map[string]interface{}{
			"s1": map[string]interface{}{
				"products": map[string]interface{}{
					"p1": map[string]string{"color": "blue"},
				},
			},
		},
		"product_urls": []string{"http://shop.test/a"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cart_1"}, form["cart_id"])
	assert.Equal(t, []string{"blue"}, form["sites[s1][products][p1][color]"])
	assert.Equal(t, []string{"http://shop.test/a"}, form["product_urls[0]"])
}

func TestCallGetShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "cart_1", r.URL.Query().Get("cart_id"))
		// Signed base params survive a colliding call param.
		assert.Equal(t, "products.getCart", r.URL.Query().Get("method"))
		w.Write([]byte(`{"status":"complete"}`))
	})

	_, err := client.Call(context.Background(), "products.getCart", Params{
		"cart_id": "cart_1",
		"method":  "spoofed",
	}, WithGet())
	require.NoError(t, err)
}

func TestCallRemoteError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"err":{"type":"OAuthException","message":"bad sig"},"cart_id":"ghost"}`))
	})

	_, err := client.Call(context.Background(), "products.addToCart", nil)
	require.Error(t, err)
	assert.Equal(t, errs.RemoteAPI, errs.Code(err))
	assert.Contains(t, err.Error(), "OAuthException")

	// Error payloads never persist.
	assert.Equal(t, "", client.State().CartID())
}

func TestCallPersistence(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"complete","cart_id":"cart_9"}`))
	})

	_, err := client.Call(context.Background(), "products.addToCart", nil, WithoutPersist())
	require.NoError(t, err)
	assert.Equal(t, "", client.State().CartID())

	_, err = client.Call(context.Background(), "products.addToCart", nil)
	require.NoError(t, err)
	assert.Equal(t, "cart_9", client.State().CartID())
}

func TestCallRefusedWhenUnconfigured(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	cfg := &config.Config{AppKey: "app-1", BaseURL: srv.URL, PrivateBaseURL: srv.URL}
	client := NewClient(cfg)
	assert.False(t, client.IsConfigured())

	_, err := client.Call(context.Background(), "products.getFromURLs", nil)
	require.Error(t, err)
	assert.Equal(t, errs.NotConfigured, errs.Code(err))
	assert.Zero(t, hits)
}

func TestCallTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	})
	client.http.Timeout = 20 * time.Millisecond

	_, err := client.Call(context.Background(), "products.getFromURLs", nil)
	require.Error(t, err)
	assert.Equal(t, errs.Timeout, errs.Code(err))
}

func TestCallUndecodableBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	resp, err := client.Call(context.Background(), "products.getFromURLs", nil)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestEncodeForm(t *testing.T) {
	got := EncodeForm(Params{
		"flag":  true,
		"off":   false,
		"count": 3,
		"skip":  nil,
	})
	assert.Equal(t, "count=3&flag=1&off=0", got)
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in, domain, action string
	}{
		{"products.getFromURLs", "products", "getFromURLs"},
		{"cards.add", "cards", "add"},
		{"noaction", "noaction", ""},
		{" pro-ducts . get! ", "products", "get"},
	}
	for _, tt := range tests {
		domain, action := splitMethod(tt.in)
		assert.Equal(t, tt.domain, domain, tt.in)
		assert.Equal(t, tt.action, action, tt.in)
	}
}
