package ipc_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/noded/noded/internal/ipc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*ipc.Server, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	s := ipc.NewServer(zap.NewNop(), sockPath)
	return s, sockPath
}

func TestPingRoundTrip(t *testing.T) {
	s, sockPath := newTestServer(t)
	s.Handle(ipc.TypePing, func(req ipc.Request) (any, error) { return nil, nil })
	require.NoError(t, s.Start())
	defer s.Stop()

	c := ipc.NewClient(sockPath)
	require.Eventually(t, c.IsRunning, time.Second, 10*time.Millisecond)
	require.NoError(t, c.Ping())
}

func TestUnknownMessageTypeReturnsError(t *testing.T) {
	s, sockPath := newTestServer(t)
	require.NoError(t, s.Start())
	defer s.Stop()

	c := ipc.NewClient(sockPath)
	require.Eventually(t, c.IsRunning, time.Second, 10*time.Millisecond)
	err := c.Ping()
	require.Error(t, err)
}

func TestRepeatedRequestsAreAllAnswered(t *testing.T) {
	s, sockPath := newTestServer(t)
	calls := 0
	s.Handle(ipc.TypePing, func(req ipc.Request) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	c := ipc.NewClient(sockPath)
	require.Eventually(t, c.IsRunning, time.Second, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Ping())
	}
	require.Equal(t, 5, calls)
}

func TestHandlerErrorIsReportedNotFatal(t *testing.T) {
	s, sockPath := newTestServer(t)
	s.Handle(ipc.TypeList, func(req ipc.Request) (any, error) { return nil, assertErr })
	s.Handle(ipc.TypePing, func(req ipc.Request) (any, error) { return nil, nil })
	require.NoError(t, s.Start())
	defer s.Stop()

	c := ipc.NewClient(sockPath)
	require.Eventually(t, c.IsRunning, time.Second, 10*time.Millisecond)

	var out any
	err := c.List(&out)
	require.Error(t, err)

	// the server must still answer requests afterward
	require.NoError(t, c.Ping())
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
