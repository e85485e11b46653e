// Package auth applies per-host credentials to HTTP requests, for datasets
// that are only served to registered users.
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/glorpus-work/datafetch/pkg/errors"
)

// ErrInvalidCredential is returned for an unusable credential entry.
var ErrInvalidCredential = fmt.Errorf("invalid credential")

// Authenticator defines the interface for applying authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// HeaderAuth represents authentication via custom HTTP headers.
type HeaderAuth struct {
	Headers map[string]string
}

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	BasicAuthType  Type = "basic"
	HeaderAuthType Type = "header"
	BearerAuthType Type = "bearer"
)

// Apply adds Basic Authentication headers to the HTTP request.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b BasicAuth) Type() Type { return BasicAuthType }

// Apply adds custom headers to the HTTP request.
func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (h HeaderAuth) Type() Type { return HeaderAuthType }

// Apply adds a Bearer token to the Authorization header of the HTTP request.
func (b BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b BearerAuth) Type() Type { return BearerAuthType }

// Credential is the settings-file form of an authenticator bound to one host.
// Secret values may reference environment variables as $VAR or ${VAR}.
type Credential struct {
	Host     string            `yaml:"host"`
	Type     Type              `yaml:"type"`
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Token    string            `yaml:"token,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// New builds the authenticator described by c.
func New(c Credential) (Authenticator, error) {
	switch c.Type {
	case BasicAuthType:
		if c.Username == "" {
			return nil, errors.Wrapf(ErrInvalidCredential, "%s: basic auth needs a username", c.Host)
		}
		return BasicAuth{Username: os.ExpandEnv(c.Username), Password: os.ExpandEnv(c.Password)}, nil
	case BearerAuthType:
		if c.Token == "" {
			return nil, errors.Wrapf(ErrInvalidCredential, "%s: bearer auth needs a token", c.Host)
		}
		return BearerAuth{Token: os.ExpandEnv(c.Token)}, nil
	case HeaderAuthType:
		if len(c.Headers) == 0 {
			return nil, errors.Wrapf(ErrInvalidCredential, "%s: header auth needs headers", c.Host)
		}
		headers := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			headers[k] = os.ExpandEnv(v)
		}
		return HeaderAuth{Headers: headers}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidCredential, "%s: unknown type %q", c.Host, c.Type)
	}
}

// Set maps host names to authenticators.
type Set struct {
	byHost map[string]Authenticator
}

// NewSet builds a Set; hosts must be unique.
func NewSet(creds []Credential) (*Set, error) {
	s := &Set{byHost: make(map[string]Authenticator, len(creds))}
	for _, c := range creds {
		host := strings.ToLower(strings.TrimSpace(c.Host))
		if host == "" {
			return nil, errors.Wrap(ErrInvalidCredential, "host is required")
		}
		if _, dup := s.byHost[host]; dup {
			return nil, errors.Wrapf(ErrInvalidCredential, "duplicate host %s", host)
		}
		a, err := New(c)
		if err != nil {
			return nil, err
		}
		s.byHost[host] = a
	}
	return s, nil
}

// For returns the authenticator for host, or nil.
func (s *Set) For(host string) Authenticator {
	if s == nil {
		return nil
	}
	return s.byHost[strings.ToLower(host)]
}

// Apply authenticates req when its host has credentials.
func (s *Set) Apply(req *http.Request) error {
	a := s.For(req.URL.Hostname())
	if a == nil {
		return nil
	}
	return a.Apply(req)
}

// Len returns the number of configured hosts.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byHost)
}
