// Package transport declares the capability interfaces the orchestration
// core consumes for outbound HTTP and credential acquisition. No concrete
// HTTP client or OAuth flow lives here; both are external collaborators per
// the core's scope (see cmd/goclaw for a thin runnable adapter).
package transport

import "github.com/hsaliak/goclaw-core/internal/errs"

// HttpPoster performs an HTTP POST and returns the response body or an error
// classified into the core's closed error-kind set.
type HttpPoster interface {
	Post(url string, body []byte, headers map[string]string) (string, error)
}

// HttpGetter performs an HTTP GET and returns the response body or an error
// classified into the core's closed error-kind set.
type HttpGetter interface {
	Get(url string, headers map[string]string) (string, error)
}

// ClassifyStatus maps an HTTP status code to the closed error-kind set, per
// spec §6.1. Callers implementing HttpPoster/HttpGetter should use this to
// build the *errs.Error returned for non-2xx responses.
func ClassifyStatus(status int) errs.Kind {
	switch {
	case status == 401:
		return errs.Unauthenticated
	case status == 403:
		return errs.PermissionDenied
	case status == 429:
		return errs.ResourceExhausted
	case status >= 400 && status < 500:
		return errs.InvalidArgument
	case status >= 500:
		return errs.Unavailable
	default:
		return errs.Internal
	}
}

// TokenProvider is present only under cloud-IDE auth; it supplies OAuth
// bearer tokens and the active cloud project id.
type TokenProvider interface {
	GetValidToken() (string, error)
	GetProjectID() (string, error)
	IsEnabled() bool
}
