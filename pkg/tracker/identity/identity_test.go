package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePages struct {
	byUsername map[string]string
	byAddress  map[string]string
	calls      int
}

func (f *fakePages) ByUsername(_ context.Context, username string) (string, error) {
	f.calls++
	html, ok := f.byUsername[username]
	if !ok {
		return "", errors.New("404")
	}
	return html, nil
}

func (f *fakePages) ByAddress(_ context.Context, address string) (string, error) {
	f.calls++
	html, ok := f.byAddress[address]
	if !ok {
		return "", errors.New("404")
	}
	return html, nil
}

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

func TestResolveAddressNoNetwork(t *testing.T) {
	pages := &fakePages{}
	r := NewResolver(pages)

	addr, ok := r.Resolve(context.Background(), "  0x1234567890ABCDEF1234567890abcdef12345678 ")
	require.True(t, ok)
	require.Equal(t, wallet, addr)
	require.Zero(t, pages.calls)
}

func TestResolveUsernameForms(t *testing.T) {
	html := `<script>{"user":{"proxyWallet":"0x1234567890ABCDEF1234567890ABCDEF12345678"}}</script>`
	pages := &fakePages{byUsername: map[string]string{"whale": html}}
	r := NewResolver(pages)

	for _, input := range []string{
		"whale",
		"@whale",
		"https://polymarket.com/@whale",
		"https://polymarket.com/@whale?tab=activity",
	} {
		addr, ok := r.Resolve(context.Background(), input)
		require.True(t, ok, input)
		require.Equal(t, wallet, addr, input)
	}
}

func TestResolveProfileURLWithAddress(t *testing.T) {
	pages := &fakePages{}
	r := NewResolver(pages)

	addr, ok := r.Resolve(context.Background(), "https://polymarket.com/profile/"+wallet+"?via=share")
	require.True(t, ok)
	require.Equal(t, wallet, addr)
	require.Zero(t, pages.calls)
}

func TestResolvePatternOrder(t *testing.T) {
	other := "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	cases := map[string]string{
		"proxy first": `"address":"` + other + `","proxyWallet":"` + wallet + `"`,
		"address":     `"address":"` + wallet + `"`,
		"wallet attr": `wallet': '` + wallet + `'`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(&fakePages{byUsername: map[string]string{"u": html}})
			addr, ok := r.Resolve(context.Background(), "u")
			require.True(t, ok)
			require.Equal(t, wallet, addr)
		})
	}
}

func TestResolveFailures(t *testing.T) {
	pages := &fakePages{byUsername: map[string]string{"empty": "<html>nothing here</html>"}}
	r := NewResolver(pages)

	_, ok := r.Resolve(context.Background(), "empty")
	require.False(t, ok)

	_, ok = r.Resolve(context.Background(), "missing")
	require.False(t, ok)

	_, ok = r.Resolve(context.Background(), "@")
	require.False(t, ok)
}

func TestUsernameLookupAndCache(t *testing.T) {
	pages := &fakePages{byAddress: map[string]string{
		wallet: `<title>Polymarket</title>"name":"Polymarket Profile","username":"bigbettor"`,
	}}
	r := NewResolver(pages)

	name, ok := r.Username(context.Background(), wallet)
	require.True(t, ok)
	require.Equal(t, "bigbettor", name)

	name, ok = r.Username(context.Background(), wallet)
	require.True(t, ok)
	require.Equal(t, "bigbettor", name)
	require.Equal(t, 1, pages.calls, "second lookup should hit the cache")

	r.Forget(context.Background(), wallet)
	_, _ = r.Username(context.Background(), wallet)
	require.Equal(t, 2, pages.calls)
}

func TestUsernameRejectsSiteName(t *testing.T) {
	pages := &fakePages{byAddress: map[string]string{
		wallet: `<title>Polymarket | Profile</title>`,
	}}
	r := NewResolver(pages)

	_, ok := r.Username(context.Background(), wallet)
	require.False(t, ok)
}

func TestUsernameFromTitle(t *testing.T) {
	pages := &fakePages{byAddress: map[string]string{
		wallet: `<title> sharpie | on the site</title>`,
	}}
	r := NewResolver(pages)

	name, ok := r.Username(context.Background(), wallet)
	require.True(t, ok)
	require.Equal(t, "sharpie", name)
}

func TestIsAddress(t *testing.T) {
	require.True(t, IsAddress(wallet))
	require.False(t, IsAddress(wallet[2:]), "bare hex without 0x is rejected")
	require.False(t, IsAddress("0x1234"))
	require.False(t, IsAddress("0xzz34567890abcdef1234567890abcdef12345678"))
}
