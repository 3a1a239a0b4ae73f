package session

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, io.Discard, false)
}

type echoHandler struct{}

func (echoHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", nil
	}
	return args[0], "ok", nil
}

type failHandler struct{}

func (failHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	return "boom", "", errDispatch
}

var errDispatch = fakeErr("dispatch failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func startServer(t *testing.T, global Handler) (*Server, string) {
	t.Helper()
	srv := NewServer(global, testLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()
	addr := ln.Addr().String()
	go srv.ListenAndServe(addr)
	time.Sleep(20 * time.Millisecond)
	return srv, addr
}

func TestDispatchFallsBackToGlobalHandler(t *testing.T) {
	srv, addr := startServer(t, echoHandler{})
	defer srv.Close()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("ping\n"))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "ok ping ok\n" {
		t.Fatalf("got %q, want %q", line, "ok ping ok\n")
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	srv, addr := startServer(t, echoHandler{})
	srv.Register("cam0", echoHandler{})
	defer srv.Close()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("cam0 get mode\n"))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "ok get ok\n" {
		t.Fatalf("got %q, want %q", line, "ok get ok\n")
	}
}

func TestDispatchReportsHandlerError(t *testing.T) {
	srv, addr := startServer(t, failHandler{})
	defer srv.Close()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("whatever\n"))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "err boom :dispatch failed\n" {
		t.Fatalf("got %q, want %q", line, "err boom :dispatch failed\n")
	}
}

func TestBroadcastOnlyReachesTaggedClients(t *testing.T) {
	srv, addr := startServer(t, echoHandler{})
	defer srv.Close()

	tagged, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tagged.Close()
	untagged, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer untagged.Close()

	tagged.Write([]byte("tag alerts\n"))
	rt := bufio.NewReader(tagged)
	if _, err := rt.ReadString('\n'); err != nil {
		t.Fatalf("read tag ack: %v", err)
	}

	ru := bufio.NewReader(untagged)

	srv.Broadcast("alerts", "alert", "seeing degraded")

	tagged.SetReadDeadline(time.Now().Add(time.Second))
	line, err := rt.ReadString('\n')
	if err != nil {
		t.Fatalf("tagged client did not receive broadcast: %v", err)
	}
	if line != "ok alert seeing degraded\n" {
		t.Fatalf("got %q, want %q", line, "ok alert seeing degraded\n")
	}

	untagged.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := ru.ReadString('\n'); err == nil {
		t.Fatal("untagged client should not have received the broadcast")
	}
}
