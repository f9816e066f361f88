package connmgr

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethercast/source/pkg/linklayer"
	"github.com/aethercast/source/pkg/logger"
)

func TestSecondConnectionIsRejectedWhileSessionActive(t *testing.T) {
	var sessionsStarted atomic.Int32
	handler := func(ctx context.Context, conn net.Conn) error {
		sessionsStarted.Add(1)
		<-ctx.Done()
		return nil
	}

	watcher := &linklayer.StaticWatcher{}
	mgr, err := New(0, watcher, handler, logger.Default())
	require.NoError(t, err)
	defer mgr.Close()

	port := mgr.listener.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	c1, err := net.Dial("tcp", addrFor(port))
	require.NoError(t, err)
	defer c1.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), sessionsStarted.Load())

	c2, err := net.Dial("tcp", addrFor(port))
	require.NoError(t, err)
	defer c2.Close()

	buf := make([]byte, 1)
	c2.SetReadDeadline(time.Now().Add(time.Second))
	_, err = c2.Read(buf)
	assert.Error(t, err) // rejected connection is closed immediately

	assert.Equal(t, int32(1), sessionsStarted.Load())
}

func addrFor(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}
