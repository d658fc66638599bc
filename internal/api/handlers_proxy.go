package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/metrics"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

type proxyRequest struct {
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
	Body     json.RawMessage `json:"body,omitempty"`
}

var proxyMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// meteredRoutes are upstream calls that spend a monthly allowance. The
// proxy refuses them so they only go through the routes that charge quota.
var meteredRoutes = []struct {
	method  string
	pattern *regexp.Regexp
	route   string
}{
	{http.MethodPost, regexp.MustCompile(`^/lists/[^/]+/contacts(/batch)?$`), "POST /api/lists/{listID}/contacts"},
	{http.MethodPost, regexp.MustCompile(`^/campaigns(/.*)?$`), "POST /api/campaigns/{campaignID}/send"},
}

// meteredRoute returns the dashboard route to use instead when method and
// endpoint would spend allowance upstream.
func meteredRoute(method, endpoint string) (string, bool) {
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	if unescaped, err := url.PathUnescape(endpoint); err == nil {
		endpoint = unescaped
	}
	endpoint = path.Clean(endpoint)
	for _, m := range meteredRoutes {
		if m.method == method && m.pattern.MatchString(endpoint) {
			return m.route, true
		}
	}
	return "", false
}

// Proxy forwards a call to the EmailOctopus API with the server's key.
// Upstream errors keep their status code. Calls that spend allowance are
// refused, and any successful mutation clears the usage cache.
//
//	POST /api/proxy
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)
	if !strings.HasPrefix(req.Endpoint, "/") || strings.Contains(req.Endpoint, "..") {
		httputil.BadRequest(w, "endpoint must be an absolute API path")
		return
	}
	if !proxyMethods[req.Method] {
		httputil.BadRequest(w, "unsupported method "+req.Method)
		return
	}
	if route, ok := meteredRoute(req.Method, req.Endpoint); ok {
		metrics.ProxyRequests.WithLabelValues(req.Method, "refused").Inc()
		httputil.JSON(w, http.StatusForbidden, httputil.ErrorResponse{
			Error: "this call counts against the monthly allowance; use " + route,
			Code:  "metered_endpoint",
		})
		return
	}

	var body interface{}
	if len(req.Body) > 0 && string(req.Body) != "null" {
		body = req.Body
	}

	data, err := h.octopus.Call(r.Context(), req.Endpoint, req.Method, body)
	if err != nil {
		var apiErr *emailoctopus.APIError
		if errors.As(err, &apiErr) {
			metrics.ProxyRequests.WithLabelValues(req.Method, "upstream_error").Inc()
			httputil.ErrorWithDetails(w, apiErr.StatusCode,
				fmt.Sprintf("EmailOctopus API error: %d - %s", apiErr.StatusCode, truncate(apiErr.Body, 200)),
				map[string]interface{}{
					"status":   apiErr.StatusCode,
					"endpoint": req.Endpoint,
					"method":   req.Method,
				})
			return
		}
		metrics.ProxyRequests.WithLabelValues(req.Method, "error").Inc()
		logger.Error("EmailOctopus: proxy call failed", "endpoint", req.Endpoint, "method", req.Method, "error", err)
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.ProxyRequests.WithLabelValues(req.Method, "ok").Inc()
	if req.Method != http.MethodGet {
		h.invalidateUsage()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
