package km3db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/km3py/km3db/common"
)

// Identity answers questions about the network location of this machine.
type Identity interface {
	// LocalIP resolves the machine's own hostname to an IPv4 address.
	LocalIP(ctx context.Context) (string, error)
	// LookupIP resolves host to an IPv4 address.
	LookupIP(ctx context.Context, host string) (string, error)
	// ExternalIP returns the address the internet sees this machine as.
	ExternalIP(ctx context.Context) (string, error)
}

// TrustedHost is a network zone whose machines share a pre-issued credential
// and never need to log in.
type TrustedHost struct {
	Name       string
	Credential Credential
	// Match reports whether this machine is inside the zone. Lookup errors
	// must be reported as false.
	Match func(ctx context.Context, id Identity) bool
}

// DefaultTrustedHosts returns the Lyon computing centre, the KM3NeT Jupyter
// hub and the KM3NeT GitLab runners.
func DefaultTrustedHosts() []TrustedHost {
	return []TrustedHost{
		{
			Name:       "lyon",
			Credential: "_kmcprod_134.158_lyo7783844001343100343mcprod1223user",
			Match: func(ctx context.Context, id Identity) bool {
				ip, err := id.LocalIP(ctx)
				return err == nil && strings.HasPrefix(ip, "134.158.")
			},
		},
		{
			Name:       "jupyter",
			Credential: "_jupyter-km3net_131.188.161.143_d9fe89a1568a49a5ac03bdf15d93d799",
			Match: func(ctx context.Context, id Identity) bool {
				ip, err := id.LocalIP(ctx)
				if err != nil {
					return false
				}
				hub, err := id.LookupIP(ctx, "jupyter.km3net.de")
				return err == nil && ip == hub
			},
		},
		{
			Name:       "gitlab",
			Credential: "_gitlab-km3net_131.188.161.155_f835d56ca6d946efb38324d59e040761",
			Match: func(ctx context.Context, id Identity) bool {
				ip, err := id.ExternalIP(ctx)
				return err == nil && ip == "131.188.161.155"
			},
		},
	}
}

// NetIdentity implements Identity with DNS lookups and an IP echo service.
type NetIdentity struct {
	Resolver   *net.Resolver
	HTTPClient *http.Client
	// EchoURL answers a GET with the caller's address as plain text.
	EchoURL string

	hostname func() (string, error)
}

// NewNetIdentity returns an Identity using the system resolver and
// https://ident.me through client.
func NewNetIdentity(client *http.Client) *NetIdentity {
	if client == nil {
		client = http.DefaultClient
	}
	return &NetIdentity{
		Resolver:   net.DefaultResolver,
		HTTPClient: client,
		EchoURL:    common.IdentityURL,
		hostname:   os.Hostname,
	}
}

func (n *NetIdentity) LocalIP(ctx context.Context) (string, error) {
	host, err := n.hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}
	return n.LookupIP(ctx, host)
}

func (n *NetIdentity) LookupIP(ctx context.Context, host string) (string, error) {
	addrs, err := n.Resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no IPv4 address for %s", host)
	}
	return addrs[0].String(), nil
}

func (n *NetIdentity) ExternalIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.EchoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip echo service: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", errors.New("ip echo service returned no address")
	}
	return ip, nil
}

var _ Identity = (*NetIdentity)(nil)
