/*
DESCRIPTION
  session.go implements the network session layer of spec §4.8: a
  line-oriented TCP protocol multiplexing several logical devices over
  one port, tag-scoped broadcast, and a device registry, generalised
  from the teacher's AVDevice command dispatch.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package session implements the TCP control protocol: a line-oriented,
// plain-text command multiplexer with per-device sub-addressing,
// tag-scoped broadcast, and a shared device registry.
package session

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/ausocean/utils/logging"
)

// Handler is implemented by every addressable command target: the global
// handler and one per device. args excludes the leading device-name
// token (or, for the global handler, is the whole line split on spaces).
// A Handler returns the verb it handled and a payload to report back as
// "ok <verb> <payload>"; an error is reported as "err <verb> :<error>".
type Handler interface {
	Handle(s *Session, args []string) (verb, payload string, err error)
}

// Server is the TCP listener multiplexing command lines to registered
// Handlers by leading device-name token, falling back to a default
// handler for unnamed lines.
type Server struct {
	log     logging.Logger
	mu      sync.Mutex
	ln      net.Listener
	handlers map[string]Handler
	global  Handler

	clients map[*Session]struct{}
}

// NewServer returns a Server with the given default (unnamed-line)
// handler.
func NewServer(global Handler, log logging.Logger) *Server {
	return &Server{
		log:      log,
		handlers: make(map[string]Handler),
		global:   global,
		clients:  make(map[*Session]struct{}),
	}
}

// Register adds a named device Handler, addressable as "<name> <verb>
// ...".
func (srv *Server) Register(name string, h Handler) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.handlers[name] = h
}

// Unregister removes a named device Handler.
func (srv *Server) Unregister(name string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.handlers, name)
}

// ListenAndServe listens on addr and accepts connections until Close is
// called, handling each on its own goroutine.
func (srv *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("session: listen %s: %w", addr, err)
	}
	srv.mu.Lock()
	srv.ln = ln
	srv.mu.Unlock()

	srv.log.Info("session listening", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			srv.mu.Lock()
			closed := srv.ln == nil
			srv.mu.Unlock()
			if closed {
				return nil
			}
			srv.log.Warning("accept failed", "error", err)
			continue
		}
		s := newSession(srv, conn)
		srv.addClient(s)
		go s.serve()
	}
}

// Close stops accepting new connections and closes every connected
// client.
func (srv *Server) Close() error {
	srv.mu.Lock()
	ln := srv.ln
	srv.ln = nil
	clients := make([]*Session, 0, len(srv.clients))
	for c := range srv.clients {
		clients = append(clients, c)
	}
	srv.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range clients {
		c.Close()
	}
	return nil
}

func (srv *Server) addClient(s *Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.clients[s] = struct{}{}
}

func (srv *Server) removeClient(s *Session) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.clients, s)
}

func (srv *Server) lookupHandler(name string) (Handler, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	h, ok := srv.handlers[name]
	return h, ok
}

// Broadcast sends "ok <topic> <payload>" to every connected client
// subscribed to tag, per spec §4.8; clients without the tag are skipped,
// and a write to a closed connection is dropped silently.
func (srv *Server) Broadcast(tag, topic, payload string) {
	srv.mu.Lock()
	clients := make([]*Session, 0, len(srv.clients))
	for c := range srv.clients {
		clients = append(clients, c)
	}
	srv.mu.Unlock()

	for _, c := range clients {
		if c.hasTag(tag) {
			c.sendOK(topic, payload)
		}
	}
}

// Session is one connected client: its own tag set and a writer guarded
// against concurrent broadcasts and reply writes.
type Session struct {
	srv  *Server
	conn net.Conn
	w    *bufio.Writer
	wmu  sync.Mutex

	tmu  sync.Mutex
	tags map[string]bool
}

func newSession(srv *Server, conn net.Conn) *Session {
	return &Session{
		srv:  srv,
		conn: conn,
		w:    bufio.NewWriter(conn),
		tags: make(map[string]bool),
	}
}

func (s *Session) serve() {
	defer func() {
		s.srv.removeClient(s)
		s.conn.Close()
	}()

	sc := bufio.NewScanner(s.conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.dispatch(line)
	}
}

func (s *Session) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	if h, ok := s.srv.lookupHandler(fields[0]); ok {
		s.run(h, fields[1:])
		return
	}
	s.run(s.srv.global, fields)
}

func (s *Session) run(h Handler, args []string) {
	if h == nil {
		s.sendErr("", "no handler for command")
		return
	}
	verb, payload, err := h.Handle(s, args)
	if err != nil {
		s.sendErr(verb, err.Error())
		return
	}
	s.sendOK(verb, payload)
}

func (s *Session) sendOK(verb, payload string) {
	s.writeLine(fmt.Sprintf("ok %s %s", verb, payload))
}

func (s *Session) sendErr(verb, msg string) {
	s.writeLine(fmt.Sprintf("err %s :%s", verb, msg))
}

// Notify sends an unsolicited ":<text>" line to this client only.
func (s *Session) Notify(text string) {
	s.writeLine(":" + text)
}

func (s *Session) writeLine(line string) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.w.WriteString(line + "\n")
	if err == nil {
		err = s.w.Flush()
	}
	if err != nil {
		s.srv.log.Warning("write to client failed, dropping", "error", err)
	}
}

// WriteBinary writes raw bytes immediately following a text line that
// announced them (the image-on-wire framing of spec §6).
func (s *Session) WriteBinary(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	return s.w.Flush()
}

// Tag subscribes this client to a broadcast topic.
func (s *Session) Tag(name string) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	s.tags[name] = true
}

// Untag unsubscribes this client from a broadcast topic.
func (s *Session) Untag(name string) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	delete(s.tags, name)
}

func (s *Session) hasTag(name string) bool {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return s.tags[name]
}

// Close drops the connection; pending writes fail silently thereafter.
func (s *Session) Close() error {
	return s.conn.Close()
}
