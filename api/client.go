// Package api implements the signed request channel to the Varinode API.
// All remote calls in the SDK go through Client.Call, which signs the
// request, routes it to the trust-appropriate endpoint, decodes the
// response and persists recognized fields into the session state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"varinode/pkg/config"
	"varinode/pkg/errs"
	"varinode/pkg/logger"
	"varinode/pkg/metrics"
	"varinode/pkg/signing"
	"varinode/session"
)

const userAgent = "varinode-go-0.1.0"

// Domains routed to the private-secret endpoint. Customer, card and address
// resources are more sensitive than the public catalog surface.
var privateDomains = map[string]bool{
	"cards":     true,
	"customers": true,
	"addresses": true,
}

// Params is the call payload. Values may be scalars, nested maps or slices;
// nested values are form-encoded with bracket notation.
type Params map[string]interface{}

// Client is the signed request channel. It owns the HTTP transport, the
// session state and the SDK logger.
type Client struct {
	cfg   *config.Config
	http  *http.Client
	state *session.State
	log   *logger.Logger
}

// NewClient builds a Client around the given configuration. Credentials are
// checked per call, so a Client may be constructed before configuration is
// complete.
func NewClient(cfg *config.Config) *Client {
	log := logger.New("varinode-sdk")
	if cfg.Debug {
		log.SetLevel(logger.DEBUG)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultTimeout
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		state: session.NewState(),
		log:   log,
	}
}

// State returns the session state owned by this client.
func (c *Client) State() *session.State {
	return c.state
}

// Logger returns the SDK logger.
func (c *Client) Logger() *logger.Logger {
	return c.log
}

// IsConfigured reports whether all three application secrets are present.
func (c *Client) IsConfigured() bool {
	return c.cfg.IsConfigured()
}

type callOptions struct {
	get          bool
	doNotPersist bool
}

// CallOption adjusts a single API call.
type CallOption func(*callOptions)

// WithGet shapes the call as a GET: params are merged into the query string
// and the body stays empty.
func WithGet() CallOption {
	return func(o *callOptions) { o.get = true }
}

// WithoutPersist opts the call out of session-state persistence.
func WithoutPersist() CallOption {
	return func(o *callOptions) { o.doNotPersist = true }
}

// Call issues a signed API request. The method name takes the dotted
// "domain.action" form; the domain selects the signing secret and base
// endpoint.
func (c *Client) Call(ctx context.Context, method string, params Params, opts ...CallOption) (Response, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	domain, _ := splitMethod(method)

	secret := c.cfg.AppSecret
	base := c.cfg.BaseURL
	if privateDomains[domain] {
		secret = c.cfg.AppPrivateSecret
		base = c.cfg.PrivateBaseURL
	}

	baseParams := map[string]string{
		"appid":  c.cfg.AppKey,
		"format": "json",
		"method": method,
	}
	baseParams["tt_sig"] = signing.Sign(secret, map[string]string{
		"appid":  baseParams["appid"],
		"format": baseParams["format"],
		"method": baseParams["method"],
	})

	reqURL := base + "/?" + encodeBaseParams(baseParams)

	var body io.Reader
	verb := http.MethodPost
	if o.get {
		verb = http.MethodGet
		reqURL = appendParamsToURL(reqURL, params)
	} else {
		body = strings.NewReader(EncodeForm(params))
	}

	requestID := uuid.NewString()
	c.log.Debug("api request", logger.Fields{
		"request_id": requestID,
		"method":     method,
		"params":     logger.Truncate(fmt.Sprintf("%v", params), 512),
	})

	req, err := http.NewRequestWithContext(ctx, verb, reqURL, body)
	if err != nil {
		return nil, errs.Newf(errs.Transport, "building request: %v", err).WithCorrelationID(requestID)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "*")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		status := "transport_error"
		code := errs.Transport
		msg := fmt.Sprintf("no response: %v", err)
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			status = "timeout"
			code = errs.Timeout
			msg = fmt.Sprintf("API request timed out (exceeded %s)", c.http.Timeout)
		}
		metrics.RecordAPIRequest(method, status, latency)
		return nil, errs.New(code, msg).WithCorrelationID(requestID)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordAPIRequest(method, "transport_error", latency)
		return nil, errs.Newf(errs.Transport, "reading response: %v", err).WithCorrelationID(requestID)
	}

	metrics.RecordAPIRequest(method, fmt.Sprintf("%d", resp.StatusCode), latency)
	c.log.Debug("api response", logger.Fields{
		"request_id": requestID,
		"method":     method,
		"status":     resp.StatusCode,
		"body":       logger.Truncate(string(raw), 512),
		"rt":         latency,
	})

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.log.Warn("result undecodeable", logger.Fields{
			"request_id": requestID,
			"method":     method,
			"status":     resp.StatusCode,
		})
		return Response{}, nil
	}

	if _, hasErr := decoded["err"]; hasErr {
		decoded["error_code"] = resp.StatusCode
		return nil, errs.Remote(decoded).WithCorrelationID(requestID)
	}

	if !o.doNotPersist {
		c.state.Persist(decoded)
	}
	return decoded, nil
}

func isClientTimeout(err error) bool {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Timeout()
	}
	return false
}

// splitMethod splits "domain.action" and strips anything outside
// [A-Za-z0-9_] from both halves.
func splitMethod(method string) (domain, action string) {
	parts := strings.SplitN(method, ".", 2)
	domain = cleanToken(parts[0])
	if len(parts) > 1 {
		action = cleanToken(parts[1])
	}
	return domain, action
}

func cleanToken(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// encodeBaseParams encodes the signed base parameter set in stable order.
func encodeBaseParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := url.Values{}
	for _, k := range keys {
		v.Set(k, params[k])
	}
	return v.Encode()
}

// appendParamsToURL merges call params into the query string. Parameters
// already on the URL win on key collision.
func appendParamsToURL(rawURL string, params Params) string {
	if len(params) == 0 {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	existing := u.Query()
	merged, err := url.ParseQuery(EncodeForm(params))
	if err != nil {
		return rawURL
	}
	for k, vals := range existing {
		merged[k] = vals
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

// EncodeForm flattens params into application/x-www-form-urlencoded data.
// Nested maps and slices use bracket notation, e.g.
// sites[s1][products][p1][color]=blue and product_urls[0]=http://x.
func EncodeForm(params Params) string {
	v := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		encodeFormValue(v, k, params[k])
	}
	return v.Encode()
}

func encodeFormValue(v url.Values, key string, value interface{}) {
	switch val := value.(type) {
	case nil:
		// skip
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeFormValue(v, key+"["+k+"]", val[k])
		}
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v.Set(key+"["+k+"]", val[k])
		}
	case Params:
		encodeFormValue(v, key, map[string]interface{}(val))
	case []interface{}:
		for i, item := range val {
			encodeFormValue(v, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []string:
		for i, item := range val {
			v.Set(fmt.Sprintf("%s[%d]", key, i), item)
		}
	case bool:
		if val {
			v.Set(key, "1")
		} else {
			v.Set(key, "0")
		}
	default:
		v.Set(key, fmt.Sprint(val))
	}
}
