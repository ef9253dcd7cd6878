// Package clienttest runs a real arcade API and stream on loopback
// listeners for client tests
package clienttest

import (
	"net"
	nethttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"arcade/internal/server/http"
	"arcade/internal/server/processor"
	"arcade/internal/server/realtime"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"
	"arcade/internal/server/stream"
)

var Secret = []byte("arcade-test-secret-0123456789abcdef")

type Server struct {
	APIURL    string
	StreamURL string
	Service   *service.Service
}

// Start serves a fresh in-memory arcade until the test ends
func Start(t *testing.T) *Server {
	t.Helper()

	svc, err := service.New(storage.NewMemoryStore(), realtime.NewHub(), service.Config{})
	require.NoError(t, err)

	validate := http.HS256Validator(Secret)
	app := http.NewFiberApp(processor.New(svc), svc, validate, http.Options{RateLimit: 1000})

	apiLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(apiLn)

	streamer := stream.NewServer(svc.Channel(), svc, stream.Config{Validate: validate})
	wsLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	wsServer := &nethttp.Server{Handler: streamer, ReadHeaderTimeout: 5 * time.Second}
	go wsServer.Serve(wsLn)

	t.Cleanup(func() {
		app.Shutdown()
		streamer.Close(time.Second)
		wsServer.Close()
		svc.Shutdown(time.Second)
	})

	return &Server{
		APIURL:    "http://" + apiLn.Addr().String(),
		StreamURL: "ws://" + wsLn.Addr().String() + "/ws",
		Service:   svc,
	}
}

// Token issues a bearer token for player
func Token(t *testing.T, player string) string {
	t.Helper()
	token, err := http.IssueToken(Secret, player, time.Hour)
	require.NoError(t, err)
	return token
}
