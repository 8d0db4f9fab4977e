package guard

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticResolver(addrs ...string) Resolver {
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, net.ParseIP(a))
	}
	return func(ctx context.Context, host string) ([]net.IP, error) {
		return ips, nil
	}
}

func failingResolver() Resolver {
	return func(ctx context.Context, host string) ([]net.IP, error) {
		return nil, errors.New("no such host")
	}
}

func TestValidate_PublicHostname(t *testing.T) {
	g := New(WithResolver(staticResolver("93.184.216.34")))
	assert.NoError(t, g.Validate(context.Background(), "https://example.com/path?q=1"))
}

func TestValidate_SchemeRejected(t *testing.T) {
	g := New(WithResolver(staticResolver("93.184.216.34")))

	for _, u := range []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"gopher://example.com",
	} {
		err := g.Validate(context.Background(), u)
		require.Error(t, err, u)
		assert.Contains(t, err.Error(), "only http and https")
	}
}

func TestValidate_LocalNames(t *testing.T) {
	g := New(WithResolver(staticResolver("93.184.216.34")))

	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost/x", "localhost"},
		{"http://LOCALHOST:80/", "localhost"},
		{"http://printer.local/", ".local"},
		{"http://intranet/", "single-label"},
	}
	for _, tt := range tests {
		err := g.Validate(context.Background(), tt.url)
		require.Error(t, err, tt.url)
		assert.Contains(t, err.Error(), tt.want, tt.url)
	}
}

func TestValidate_PortAllowlist(t *testing.T) {
	g := New(WithResolver(staticResolver("93.184.216.34")))

	err := g.Validate(context.Background(), "http://example.com:8080/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 8080")

	// Defaults pass for both schemes.
	assert.NoError(t, g.Validate(context.Background(), "http://example.com/"))
	assert.NoError(t, g.Validate(context.Background(), "https://example.com:443/"))
}

func TestValidate_PortReload(t *testing.T) {
	g := New(WithResolver(staticResolver("93.184.216.34")))

	require.Error(t, g.Validate(context.Background(), "http://example.com:9000/"))

	g.SetAllowedPorts([]int{80, 443, 9000})
	assert.NoError(t, g.Validate(context.Background(), "http://example.com:9000/"))
	assert.Equal(t, []int{80, 443, 9000}, g.AllowedPorts())
}

func TestValidate_LiteralIPs(t *testing.T) {
	// Literal addresses never hit DNS.
	g := New(WithResolver(failingResolver()))

	assert.NoError(t, g.Validate(context.Background(), "http://93.184.216.34/"))

	for _, u := range []string{
		"http://127.0.0.1/",
		"http://10.1.2.3/",
		"http://172.16.0.9/",
		"http://192.168.1.1/",
		"http://169.254.169.254/",
	} {
		err := g.Validate(context.Background(), u)
		require.Error(t, err, u)
		assert.Contains(t, err.Error(), "private or reserved", u)
	}
}

func TestValidate_ResolvedPrivateAddress(t *testing.T) {
	g := New(WithResolver(staticResolver("10.0.0.5")))

	err := g.Validate(context.Background(), "http://evil.example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolves to a private")
}

func TestValidate_MixedResolutionRejected(t *testing.T) {
	// One private record poisons the hostname, even with a public one present.
	g := New(WithResolver(staticResolver("93.184.216.34", "192.168.0.10")))

	err := g.Validate(context.Background(), "http://rebind.example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolves to a private")
}

func TestValidate_DNSFailure(t *testing.T) {
	g := New(WithResolver(failingResolver()))

	err := g.Validate(context.Background(), "http://nxdomain.example.com/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DNS resolution failed")
}

func TestValidate_MissingHostname(t *testing.T) {
	g := New()
	err := g.Validate(context.Background(), "http://")
	require.Error(t, err)
}

func TestValidate_ErrorType(t *testing.T) {
	g := New()
	err := g.Validate(context.Background(), "ftp://example.com")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gerr.Reason, gerr.Error())
}
