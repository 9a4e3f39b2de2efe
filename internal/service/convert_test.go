package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/core"
)

type scriptedConverter struct {
	name   string
	mesh   []byte
	err    error
	called int
}

func (c *scriptedConverter) Name() string { return c.name }

func (c *scriptedConverter) Convert(context.Context, []byte) ([]byte, error) {
	c.called++
	return c.mesh, c.err
}

func TestConverterChain_FirstSuccessWins(t *testing.T) {
	primary := &scriptedConverter{name: "primary", err: errors.New("model too complex")}
	secondary := &scriptedConverter{name: "secondary", mesh: []byte("mesh-bytes")}
	tertiary := &scriptedConverter{name: "tertiary", mesh: []byte("unused")}
	chain := NewConverterChain([]core.MeshConverter{primary, secondary, tertiary}, nil)

	out, err := chain.Convert(context.Background(), []byte("image"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mesh-bytes"), out)
	assert.Equal(t, 1, primary.called)
	assert.Equal(t, 1, secondary.called)
	assert.Zero(t, tertiary.called, "later backends are not consulted after a success")
}

func TestConverterChain_AllFailuresAreJoined(t *testing.T) {
	a := &scriptedConverter{name: "alpha", err: errors.New("timeout")}
	b := &scriptedConverter{name: "beta", err: errors.New("bad image")}
	chain := NewConverterChain([]core.MeshConverter{a, b}, nil)

	_, err := chain.Convert(context.Background(), []byte("image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha: timeout")
	assert.Contains(t, err.Error(), "beta: bad image")
}

func TestConverterChain_NoBackends(t *testing.T) {
	chain := NewConverterChain(nil, nil)
	_, err := chain.Convert(context.Background(), []byte("image"))
	assert.Error(t, err)
}

func TestHTTPConverter_Convert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("mesh"))
	}))
	defer server.Close()

	c := NewHTTPConverter("test", server.URL, time.Second)
	out, err := c.Convert(context.Background(), []byte("image"))
	require.NoError(t, err)
	assert.Equal(t, []byte("mesh"), out)
}

func TestHTTPConverter_ErrorResponses(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()
		c := NewHTTPConverter("test", server.URL, time.Second)
		_, err := c.Convert(context.Background(), []byte("image"))
		assert.Error(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		c := NewHTTPConverter("test", server.URL, time.Second)
		_, err := c.Convert(context.Background(), []byte("image"))
		assert.Error(t, err)
	})
}

func TestParseConverterBackends(t *testing.T) {
	backends, err := ParseConverterBackends("fast=http://fast.internal/convert, slow=http://slow.internal/convert", time.Minute)
	require.NoError(t, err)
	require.Len(t, backends, 2)
	assert.Equal(t, "fast", backends[0].Name())
	assert.Equal(t, "slow", backends[1].Name())

	backends, err = ParseConverterBackends("", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, backends)

	_, err = ParseConverterBackends("missing-equals-sign", time.Minute)
	assert.Error(t, err)
}
