// Package urlstore implements the optional url capability: treating a
// caller-supplied location as a surrogate configuration store that can be
// fetched, validated and reinitialized. The capability is disabled by
// simply not wiring a client.
package urlstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/skolbel/netopeer2/pkg/netconf"
	"github.com/skolbel/netopeer2/pkg/schema"
)

var (
	// ErrUnsupportedScheme indicates a location scheme the client cannot serve.
	ErrUnsupportedScheme = errors.New("urlstore: unsupported url scheme")
	// ErrInvalidConfig indicates fetched content failed strict validation.
	ErrInvalidConfig = errors.New("urlstore: content is not a valid config")
)

// emptyConfig is what Reinitialize writes to the location.
const emptyConfig = "<config/>\n"

// Client fetches and reinitializes configuration content at a location.
type Client interface {
	// FetchConfig retrieves the document at rawurl and strictly
	// validates it as a configuration document. The parsed tree is
	// returned for inspection but is typically discarded; the call
	// exists as a validity gate.
	FetchConfig(ctx context.Context, rawurl string) (*netconf.Node, error)

	// Reinitialize resets the location to an empty configuration.
	Reinitialize(ctx context.Context, rawurl string) error
}

// StoreClient serves http, https and file locations. Strictness comes
// from the schema registry: every top-level element of the fetched
// document must name a writable top-level node of a known module, and
// unknown elements are rejected rather than ignored.
type StoreClient struct {
	registry *schema.Registry
	http     *http.Client
}

// NewStoreClient builds a client validating against registry. The HTTP
// client may be nil, in which case a 30 second default is used.
func NewStoreClient(registry *schema.Registry, httpClient *http.Client) (*StoreClient, error) {
	if registry == nil {
		return nil, fmt.Errorf("urlstore: registry is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &StoreClient{registry: registry, http: httpClient}, nil
}

// FetchConfig implements Client.
func (c *StoreClient) FetchConfig(ctx context.Context, rawurl string) (*netconf.Node, error) {
	raw, err := c.fetch(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	root, err := netconf.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

// Reinitialize implements Client.
func (c *StoreClient) Reinitialize(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return fmt.Errorf("urlstore: parse url: %w", err)
	}
	switch u.Scheme {
	case "file":
		path := filePath(u)
		if err := os.WriteFile(path, []byte(emptyConfig), 0o644); err != nil {
			return fmt.Errorf("urlstore: reinitialize %s: %w", path, err)
		}
		return nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, rawurl, strings.NewReader(emptyConfig))
		if err != nil {
			return fmt.Errorf("urlstore: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/xml")
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("urlstore: reinitialize %s: %w", rawurl, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("urlstore: reinitialize %s: unexpected status %s", rawurl, resp.Status)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (c *StoreClient) fetch(ctx context.Context, rawurl string) ([]byte, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("urlstore: parse url: %w", err)
	}
	switch u.Scheme {
	case "file":
		path := filePath(u)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("urlstore: read %s: %w", path, err)
		}
		return raw, nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return nil, fmt.Errorf("urlstore: build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("urlstore: fetch %s: %w", rawurl, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("urlstore: fetch %s: unexpected status %s", rawurl, resp.Status)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("urlstore: read body: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// validate enforces the strict config contract: the root must be a
// <config> envelope and every child must be a writable top-level node of
// some known module.
func (c *StoreClient) validate(root *netconf.Node) error {
	if root.Name != "config" {
		return fmt.Errorf("%w: root element is <%s>, want <config>", ErrInvalidConfig, root.Name)
	}
	for _, child := range root.Children {
		if !c.known(child.Name) {
			return fmt.Errorf("%w: unknown element <%s>", ErrInvalidConfig, child.Name)
		}
	}
	return nil
}

func (c *StoreClient) known(name string) bool {
	for _, mod := range c.registry.Modules() {
		for _, d := range mod.Nodes {
			if d.Name == name && d.Writable() {
				return true
			}
		}
	}
	return false
}

func filePath(u *url.URL) string {
	if u.Path != "" {
		return u.Path
	}
	return u.Opaque
}
