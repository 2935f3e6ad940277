package remote

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crittermon/arena/internal/logging"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsRequestTimeout = 15 * time.Second
)

// WSStore is a Store whose tree lives on a relay server, reached over a
// single websocket connection. Every request is tagged with a sequence
// number and waits for its result. Change messages are handed to a
// dispatch goroutine that invokes observer callbacks in arrival order,
// keeping the read loop free to receive result frames; callbacks may
// therefore issue store requests themselves.
type WSStore struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	seq       int64
	pending   map[int64]chan Response
	observers map[Handle]func(interface{})
	closed    bool

	dispatchMu   sync.Mutex
	dispatchCond *sync.Cond
	changes      []Response
	dispatchDone bool
}

// DialStore connects to a relay server's websocket endpoint and starts the
// read loop.
func DialStore(url string) (*WSStore, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial store %s: %w", url, err)
	}
	s := &WSStore{
		conn:      conn,
		pending:   make(map[int64]chan Response),
		observers: make(map[Handle]func(interface{})),
	}
	s.dispatchCond = sync.NewCond(&s.dispatchMu)
	go s.readLoop()
	go s.dispatchLoop()
	return s, nil
}

func (s *WSStore) readLoop() {
	for {
		var resp Response
		if err := s.conn.ReadJSON(&resp); err != nil {
			s.failPending(err)
			s.stopDispatch()
			return
		}
		switch resp.Type {
		case TypeResult:
			s.mu.Lock()
			ch, ok := s.pending[resp.Seq]
			delete(s.pending, resp.Seq)
			s.mu.Unlock()
			if ok {
				ch <- resp
			}
		case TypeChange:
			s.enqueueChange(resp)
		default:
			logging.Warn("unknown store message type", nil, logging.Fields{"type": resp.Type})
		}
	}
}

func (s *WSStore) enqueueChange(resp Response) {
	s.dispatchMu.Lock()
	s.changes = append(s.changes, resp)
	s.dispatchMu.Unlock()
	s.dispatchCond.Signal()
}

func (s *WSStore) stopDispatch() {
	s.dispatchMu.Lock()
	s.dispatchDone = true
	s.dispatchMu.Unlock()
	s.dispatchCond.Signal()
}

// dispatchLoop drains queued change messages and invokes the matching
// observer callback for each. It drains what is already queued even after
// the connection dies.
func (s *WSStore) dispatchLoop() {
	for {
		s.dispatchMu.Lock()
		for len(s.changes) == 0 && !s.dispatchDone {
			s.dispatchCond.Wait()
		}
		if len(s.changes) == 0 {
			s.dispatchMu.Unlock()
			return
		}
		resp := s.changes[0]
		s.changes = s.changes[1:]
		s.dispatchMu.Unlock()

		s.mu.Lock()
		fn := s.observers[Handle(resp.Watch)]
		s.mu.Unlock()
		if fn != nil {
			fn(decodeRaw(resp.Value))
		}
	}
}

func decodeRaw(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		logging.Warn("malformed change payload", err, nil)
		return nil
	}
	return value
}

// failPending unblocks every in-flight request after the connection dies.
func (s *WSStore) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan Response)
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		logging.Warn("store connection lost", err, nil)
	}
	for _, ch := range pending {
		ch <- Response{Error: "connection closed"}
	}
}

func (s *WSStore) request(req Request) (Response, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Response{}, fmt.Errorf("store closed")
	}
	s.seq++
	req.Seq = s.seq
	ch := make(chan Response, 1)
	s.pending[req.Seq] = ch
	s.mu.Unlock()

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := s.conn.WriteJSON(req)
	s.writeMu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, req.Seq)
		s.mu.Unlock()
		return Response{}, fmt.Errorf("store %s %s: %w", req.Op, req.Path, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return Response{}, fmt.Errorf("store %s %s: %s", req.Op, req.Path, resp.Error)
		}
		return resp, nil
	case <-time.After(wsRequestTimeout):
		s.mu.Lock()
		delete(s.pending, req.Seq)
		s.mu.Unlock()
		return Response{}, fmt.Errorf("store %s %s: timed out", req.Op, req.Path)
	}
}

func (s *WSStore) Put(path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store put %s: %w", path, err)
	}
	_, err = s.request(Request{Op: OpPut, Path: path, Value: raw})
	return err
}

func (s *WSStore) Get(path string) (interface{}, error) {
	resp, err := s.request(Request{Op: OpGet, Path: path})
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp.Value), nil
}

func (s *WSStore) Remove(path string) error {
	_, err := s.request(Request{Op: OpRemove, Path: path})
	return err
}

// Observe registers the callback before sending the request so a change
// racing the result cannot be dropped. The watch identifier is chosen by
// the client and echoed by the server on every change message.
func (s *WSStore) Observe(path string, onChange func(interface{})) (Handle, error) {
	s.mu.Lock()
	s.seq++
	watch := s.seq
	s.observers[Handle(watch)] = onChange
	s.mu.Unlock()

	_, err := s.request(Request{Op: OpObserve, Path: path, Watch: watch})
	if err != nil {
		s.mu.Lock()
		delete(s.observers, Handle(watch))
		s.mu.Unlock()
		return 0, err
	}
	return Handle(watch), nil
}

func (s *WSStore) Unobserve(h Handle) {
	s.mu.Lock()
	delete(s.observers, h)
	s.mu.Unlock()
	if _, err := s.request(Request{Op: OpUnobserve, Watch: int64(h)}); err != nil {
		logging.Warn("unobserve failed", err, nil)
	}
}

// Close tears down the connection. In-flight requests fail with a closed
// connection error.
func (s *WSStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
