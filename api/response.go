package api

// StatusComplete is the success status of multi-stage cart and order
// operations; any other status requires per-site inspection of
// processed_sites.
const StatusComplete = "complete"

// Failure statuses reported by the URL-resolution endpoint.
const (
	StatusErrors             = "errors"
	StatusCompleteWithErrors = "complete_with_errors"
)

// Response is a decoded API response body.
type Response map[string]interface{}

// Str returns the string value for a top-level key, or "".
func (r Response) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// Status returns the response status field.
func (r Response) Status() string {
	return r.Str("status")
}

// Complete reports whether the response status is "complete".
func (r Response) Complete() bool {
	return r.Status() == StatusComplete
}

// Map returns a nested object for a top-level key, or nil.
func (r Response) Map(key string) map[string]interface{} {
	m, _ := r[key].(map[string]interface{})
	return m
}

// Slice returns an array field for a top-level key, or nil.
func (r Response) Slice(key string) []interface{} {
	s, _ := r[key].([]interface{})
	return s
}

// Strings returns a string-array field, skipping non-string members.
func (r Response) Strings(key string) []string {
	raw := r.Slice(key)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ProcessedSite is one per-site block of a multi-site response.
type ProcessedSite struct {
	SiteInfo      map[string]interface{}
	Products      []map[string]interface{}
	URLsFailed    []interface{}
	OrderID       string
	Result        string
	ResultMessage string
}

// SiteID returns the site id from the site info block.
func (p ProcessedSite) SiteID() string {
	id, _ := p.SiteInfo["site_id"].(string)
	return id
}

// ProcessedSites parses the processed_sites array.
func (r Response) ProcessedSites() []ProcessedSite {
	raw := r.Slice("processed_sites")
	out := make([]ProcessedSite, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		site := ProcessedSite{}
		site.SiteInfo, _ = m["site_info"].(map[string]interface{})
		site.URLsFailed, _ = m["urls_failed"].([]interface{})
		site.OrderID, _ = m["order_id"].(string)
		site.Result, _ = m["result"].(string)
		site.ResultMessage, _ = m["result_message"].(string)
		if products, ok := m["products"].([]interface{}); ok {
			for _, p := range products {
				if pm, ok := p.(map[string]interface{}); ok {
					site.Products = append(site.Products, pm)
				}
			}
		}
		out = append(out, site)
	}
	return out
}
