package optimalblue

import (
	"errors"
	"net/http"
)

const baseURL = "https://quickquote-consumer.optimalblue.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=optimalblue_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Widget identifies the lender's quick-quote form.
type Widget struct {
	ClientID string
	UserID   string
	FormID   string
}

// Client is a client for the OptimalBlue consumer quick-quote API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// widget is echoed in every search payload.
	widget Widget
}

// ClientOption is a configuration option for the Client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new quick-quote client for widget.
func NewClient(widget Widget, options ...ClientOption) (*Client, error) {
	if widget.ClientID == "" || widget.FormID == "" {
		return nil, errors.New("optimalblue: client id and form id are required")
	}
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header: http.Header{
			"Accept": []string{"application/json, text/plain, */*"},
		},
		widget: widget,
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
