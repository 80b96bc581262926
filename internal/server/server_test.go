package server

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"symvea.dev/store/internal/wire"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dataDir := t.TempDir()
	srv, err := New(Config{ListenAddr: "127.0.0.1:0", DataDir: dataDir}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	deadline := time.Now().Add(2 * time.Second)
	var addr string
	for time.Now().Before(deadline) {
		if addr = srv.Addr(); addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatalf("server did not bind a listener in time")
	}

	t.Cleanup(func() { _ = srv.Close() })
	return srv, addr
}

func TestServerAcceptsConnectionAndHandshakes(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := wire.WriteHandshake(conn); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	h, err := wire.ReadHandshake(conn)
	if err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if h.Version != wire.ProtocolVersion {
		t.Fatalf("unexpected server handshake version: %d", h.Version)
	}
}

func TestServerEndToEndUploadDownload(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := wire.WriteHandshake(conn); err != nil {
		t.Fatal(err)
	}
	if _, err := wire.ReadHandshake(conn); err != nil {
		t.Fatal(err)
	}

	value := []byte("hello")
	if err := wire.WriteFrame(conn, wire.FrameUpload, wire.EncodeUpload("hello", value)); err != nil {
		t.Fatal(err)
	}
	frameType, payload, err := wire.ReadFrame(conn, 0)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if frameType != wire.FrameAck {
		t.Fatalf("expected Ack, got %d", frameType)
	}
	key, originalSize, _, err := wire.DecodeAck(payload)
	if err != nil || key != "hello" || originalSize != uint64(len(value)) {
		t.Fatalf("unexpected ack: key=%q size=%d err=%v", key, originalSize, err)
	}

	if err := wire.WriteFrame(conn, wire.FrameDownload, wire.EncodeDownload("hello")); err != nil {
		t.Fatal(err)
	}
	frameType, payload, err = wire.ReadFrame(conn, 0)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if frameType != wire.FrameData {
		t.Fatalf("expected Data, got %d", frameType)
	}
	_, data, err := wire.DecodeData(payload)
	if err != nil || string(data) != string(value) {
		t.Fatalf("round trip mismatch: data=%q err=%v", data, err)
	}
}
