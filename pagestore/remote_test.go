package pagestore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gomam/resource"
)

func TestServer_MultipleClients(t *testing.T) {
	srv := NewServer(NewMemoryManager(WithPageSize(64)))
	ctx := context.Background()

	a, err := Dial(ctx, srv)
	require.NoError(t, err)
	b, err := Dial(ctx, srv)
	require.NoError(t, err)
	assert.NotEqual(t, a.ClientID(), b.ClientID())
	assert.Equal(t, 2, srv.Clients())

	p, err := a.AllocatePage()
	require.NoError(t, err)
	copy(p.Data(), "shared")
	require.NoError(t, a.WritePage(p))
	a.ReleasePage(p)

	q, err := b.ReadPage(p.ID())
	require.NoError(t, err)
	assert.Equal(t, "shared", string(q.Data()[:6]))
	b.ReleasePage(q)

	sa, ok := srv.ClientStats(a.ClientID())
	require.True(t, ok)
	assert.Equal(t, uint64(2), sa.Writes)
	sb, ok := srv.ClientStats(b.ClientID())
	require.True(t, ok)
	assert.Equal(t, uint64(2), sb.Reads, "header read during Dial plus one page")

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, srv.Clients())
	_, ok = srv.ClientStats(a.ClientID())
	assert.False(t, ok)

	_, err = a.ReadPage(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestServer_UnknownClient(t *testing.T) {
	srv := NewServer(NewMemoryManager())
	resp, err := srv.RoundTrip(context.Background(), Request{Client: uuid.New(), Op: OpPageCount})
	require.NoError(t, err)
	assert.ErrorIs(t, resp.Err, ErrUnknownClient)
}

func TestServer_LeaseLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxLeasedPages: 2})
	srv := NewServer(NewMemoryManager(WithPageSize(64)), WithResourceController(rc))

	c, err := Dial(context.Background(), srv)
	require.NoError(t, err)

	p1, err := c.AllocatePage()
	require.NoError(t, err)
	_, err = c.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.Leased())

	_, err = c.AllocatePage()
	assert.ErrorIs(t, err, resource.ErrLeaseLimitExceeded)

	c.ReleasePage(p1)
	assert.Equal(t, int64(1), rc.Leased())

	// Disconnecting returns the leases the client still holds.
	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), rc.Leased())
}

func TestServer_CanceledContext(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxInFlight: 1})
	srv := NewServer(NewMemoryManager(), WithResourceController(rc))

	require.NoError(t, rc.Acquire(context.Background()))
	defer rc.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dial(ctx, srv)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "ReadPage", OpReadPage.String())
	assert.Equal(t, "Op(200)", Op(200).String())
}
