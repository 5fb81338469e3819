package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LImboing/hostsim/internal/dnstypes"
)

func TestHangingRequestNeverCompletes(t *testing.T) {
	h := NewHanging()
	defer h.Close()

	req := h.CreateRequest(dnstypes.HostPort{Host: "stuck.test"}, "site-key", Parameters{})
	err := req.Start(func(error) { t.Fatal("hanging request completed") })
	assert.True(t, dnstypes.IsPending(err))

	assert.Equal(t, "stuck.test", h.LastHost().Host)
	assert.Equal(t, "site-key", h.LastIsolationKey())

	req.Cancel()
	assert.Equal(t, 1, h.NumCancellations())
}

func TestHangingCancellationCounting(t *testing.T) {
	h := NewHanging()
	defer h.Close()

	// Never-started requests do not count.
	idle := h.CreateRequest(dnstypes.HostPort{Host: "idle.test"}, "", Parameters{})
	idle.Cancel()
	assert.Equal(t, 0, h.NumCancellations())

	// Double cancel counts once.
	req := h.CreateRequest(dnstypes.HostPort{Host: "stuck.test"}, "", Parameters{})
	require.True(t, dnstypes.IsPending(req.Start(func(error) {})))
	req.Cancel()
	req.Cancel()
	assert.Equal(t, 1, h.NumCancellations())
}

func TestHangingShutdownFailsNewRequests(t *testing.T) {
	h := NewHanging()
	defer h.Close()
	h.Shutdown()

	req := h.CreateRequest(dnstypes.HostPort{Host: "late.test"}, "", Parameters{})
	err := req.Start(func(error) {})
	assert.Equal(t, dnstypes.CodeShutDown, dnstypes.CodeOf(err))

	req.Cancel()
	assert.Equal(t, 0, h.NumCancellations(), "failed-at-start requests never count")
}

func TestHangingLocalOnlyFailsImmediately(t *testing.T) {
	h := NewHanging()
	defer h.Close()

	req := h.CreateRequest(dnstypes.HostPort{Host: "local.test"}, "", Parameters{Source: dnstypes.SourceLocalOnly})
	err := req.Start(func(error) {})
	assert.True(t, dnstypes.IsCacheMiss(err))
}

func TestHangingProbe(t *testing.T) {
	h := NewHanging()
	defer h.Close()

	probe := h.CreateDoHProbe()
	assert.True(t, dnstypes.IsPending(probe.Start(func(error) {})))

	h.Shutdown()
	late := h.CreateDoHProbe()
	assert.Equal(t, dnstypes.CodeShutDown, dnstypes.CodeOf(late.Start(func(error) {})))
	probe.Cancel()
}

func TestHangingCloseStopsCounting(t *testing.T) {
	h := NewHanging()
	req := h.CreateRequest(dnstypes.HostPort{Host: "stuck.test"}, "", Parameters{})
	require.True(t, dnstypes.IsPending(req.Start(func(error) {})))

	h.Close()
	req.Cancel()
	assert.Equal(t, 0, h.NumCancellations(), "teardown severs the back-reference")
}
