package sctp

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func pipeAssociations(t *testing.T) (client, server *Association) {
	t.Helper()
	ca, cb := net.Pipe()

	clientCh := make(chan *Association, 1)
	clientErrCh := make(chan error, 1)
	go func() {
		a, err := Client(Config{NetConn: ca, LoggerFactory: logging.NewDefaultLoggerFactory(), Name: "client"})
		clientCh <- a
		clientErrCh <- err
	}()

	a, err := Server(Config{NetConn: cb, LoggerFactory: logging.NewDefaultLoggerFactory(), Name: "server"})
	require.NoError(t, err)
	server = a

	client = <-clientCh
	require.NoError(t, <-clientErrCh)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return client, server
}

func waitHandshake(t *testing.T, a *Association) {
	t.Helper()
	select {
	case res := <-a.HandshakeDone():
		require.NoError(t, res.Err)
	case <-time.After(testTimeout):
		t.Fatalf("[%s] handshake did not complete in time", a.Name())
	}
}

func TestFourWayHandshakeEstablishes(t *testing.T) {
	client, server := pipeAssociations(t)

	waitHandshake(t, client)
	waitHandshake(t, server)

	assert.Equal(t, Established, client.State())
	assert.Equal(t, Established, server.State())
}

func TestOrderedDataTransferAcrossStreams(t *testing.T) {
	client, server := pipeAssociations(t)
	waitHandshake(t, client)
	waitHandshake(t, server)

	cs, err := client.OpenStream(1, ppidString)
	require.NoError(t, err)

	const msg = "hello sctp"
	_, err = cs.Write([]byte(msg))
	require.NoError(t, err)

	var ss *Stream
	select {
	case ss = <-server.acceptCh:
	case <-time.After(testTimeout):
		t.Fatal("server never saw the new stream")
	}

	buf := make([]byte, 256)
	n, err := readWithTimeout(t, ss, buf)
	require.NoError(t, err)
	assert.Equal(t, msg, string(buf[:n]))
}

func TestGracefulShutdownReachesDoneOnBothSides(t *testing.T) {
	client, server := pipeAssociations(t)
	waitHandshake(t, client)
	waitHandshake(t, server)

	require.NoError(t, client.Shutdown())

	select {
	case <-client.Done():
	case <-time.After(testTimeout):
		t.Fatal("client did not reach Done() after Shutdown")
	}
	select {
	case <-server.Done():
	case <-time.After(testTimeout):
		t.Fatal("server did not reach Done() after peer shutdown")
	}

	assert.Equal(t, Closed, client.State())
}

func TestStreamResetIsAcknowledgedByPeer(t *testing.T) {
	client, server := pipeAssociations(t)
	waitHandshake(t, client)
	waitHandshake(t, server)

	cs, err := client.OpenStream(2, ppidBinary)
	require.NoError(t, err)
	_, err = cs.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	select {
	case <-server.acceptCh:
	case <-time.After(testTimeout):
		t.Fatal("server never saw the new stream")
	}

	require.NoError(t, client.ResetStream(2))

	require.Eventually(t, func() bool {
		client.lock.Lock()
		defer client.lock.Unlock()
		_, stillTracked := client.reconfigs[client.myNextRSN-1]
		return !stillTracked
	}, testTimeout, 10*time.Millisecond, "peer must acknowledge the reset request")
}

// readWithTimeout reads one message from s.ReadSCTP, failing the test if none
// arrives within testTimeout (ReadSCTP blocks until a full message is
// reassembled or the stream closes).
func readWithTimeout(t *testing.T, s *Stream, buf []byte) (int, error) {
	t.Helper()
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := s.Read(buf)
		ch <- result{n, err}
	}()

	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(testTimeout):
		t.Fatal("read timed out")
		return 0, nil
	}
}
