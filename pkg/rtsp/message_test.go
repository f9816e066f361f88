package rtsp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRequestRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	req := NewRequest("SETUP", "rtsp://192.168.49.1/wfd1.0/streamid=0", 3)
	req.Header["Transport"] = "RTP/AVP/UDP;unicast;client_port=19000-19001"
	require.NoError(t, w.Write(req))

	r := NewReader(bufio.NewReader(&buf))
	got, err := r.Read()
	require.NoError(t, err)

	assert.Equal(t, "SETUP", got.Method)
	assert.Equal(t, "rtsp://192.168.49.1/wfd1.0/streamid=0", got.URL)
	assert.Equal(t, 3, got.CSeq)
	assert.Equal(t, "RTP/AVP/UDP;unicast;client_port=19000-19001", got.Header["Transport"])
}

func TestWriteThenReadResponseWithBodyRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	resp := NewResponse(200, 3)
	resp.Session = "12345678;timeout=60"
	resp.Body = []byte("wfd_video_formats: 00 00 02 10 ...\r\n")
	require.NoError(t, w.Write(resp))

	r := NewReader(bufio.NewReader(&buf))
	got, err := r.Read()
	require.NoError(t, err)

	assert.False(t, got.IsRequest())
	assert.Equal(t, 200, got.StatusCode)
	assert.Equal(t, "12345678;timeout=60", got.Session)
	assert.Equal(t, resp.Body, got.Body)
}

func TestReadRejectsMalformedStartLine(t *testing.T) {
	r := NewReader(bufio.NewReader(bytes.NewBufferString("garbage\r\n\r\n")))
	_, err := r.Read()
	assert.Error(t, err)
}
