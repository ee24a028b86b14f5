package proxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"jequi/internal/jqhttp"
)

func TestResolveAddressSiblingHandlerWins(t *testing.T) {
	cfg := &Config{ProxyAddress: "static.internal:80"}
	cfg.AddProxyHandler(func(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) string {
		return ""
	})
	cfg.AddProxyHandler(func(ctx context.Context, req *jqhttp.Request, resp *jqhttp.Response) string {
		return "sibling.internal:81"
	})

	req := jqhttp.NewRequest()
	resp := jqhttp.NewResponse()
	got := cfg.resolveAddress(context.Background(), req, resp)
	assert.Equal(t, "sibling.internal:81", got)
}

func TestResolveAddressFallsBackToStaticAddress(t *testing.T) {
	cfg := &Config{ProxyAddress: "static.internal:80"}

	req := jqhttp.NewRequest()
	resp := jqhttp.NewResponse()
	got := cfg.resolveAddress(context.Background(), req, resp)
	assert.Equal(t, "static.internal:80", got)
}

func TestAddressesNormalizesListForms(t *testing.T) {
	cfg := &Config{ProxyAddress: []interface{}{"a:1", "b:2"}}
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.addresses())

	cfg2 := &Config{ProxyAddress: []string{"c:3"}}
	assert.Equal(t, []string{"c:3"}, cfg2.addresses())

	cfg3 := &Config{ProxyAddress: ""}
	assert.Empty(t, cfg3.addresses())
}
