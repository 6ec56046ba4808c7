package flow

import "time"

// Option configures a single flow step.
type Option func(*stepOptions)

type stepOptions struct {
	successRedirect      string
	failureRedirect      string
	originField          string
	contactField         string
	deliveryField        string
	allowGet             bool
	allowPost            bool
	allowTokenInQuery    bool
	enableOriginRedirect bool
	tokenTTL             time.Duration
}

func defaultStepOptions() *stepOptions {
	return &stepOptions{
		contactField:      "email",
		deliveryField:     "delivery",
		allowTokenInQuery: true,
	}
}

// WithSuccessRedirect redirects to url instead of calling the next handler on success.
func WithSuccessRedirect(url string) Option {
	return func(o *stepOptions) {
		o.successRedirect = url
	}
}

// WithFailureRedirect redirects to url, with an error query parameter, instead of
// answering with an error status.
func WithFailureRedirect(url string) Option {
	return func(o *stepOptions) {
		o.failureRedirect = url
	}
}

// WithOriginField names the field carrying the URL to return to after login.
// RequestToken reads it from the request and Restricted appends it to the failure redirect.
func WithOriginField(name string) Option {
	return func(o *stepOptions) {
		o.originField = name
	}
}

// WithContactField names the request field holding the contact. Defaults to "email".
func WithContactField(name string) Option {
	return func(o *stepOptions) {
		o.contactField = name
	}
}

// WithDeliveryField names the request field selecting the delivery. Defaults to "delivery".
func WithDeliveryField(name string) Option {
	return func(o *stepOptions) {
		o.deliveryField = name
	}
}

// WithAllowGet lets RequestToken accept GET requests.
func WithAllowGet() Option {
	return func(o *stepOptions) {
		o.allowGet = true
	}
}

// WithAllowPost lets AcceptToken read token and uid from a POST body.
func WithAllowPost() Option {
	return func(o *stepOptions) {
		o.allowPost = true
	}
}

// WithTokenInQuery controls whether AcceptToken reads token and uid from the query string.
func WithTokenInQuery(allow bool) Option {
	return func(o *stepOptions) {
		o.allowTokenInQuery = allow
	}
}

// WithOriginRedirect sends the user back to the origin stored with the token after acceptance.
func WithOriginRedirect() Option {
	return func(o *stepOptions) {
		o.enableOriginRedirect = true
	}
}

// WithTokenTTL sets the lifetime of tokens issued by RequestToken, overriding
// the engine and delivery defaults.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *stepOptions) {
		o.tokenTTL = ttl
	}
}
