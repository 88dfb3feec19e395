package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"simple-ledger-go/common"
	"sync"
	"time"
)

const (
	MAX_REQUEST_SIZE = 64 << 20
	READ_TIMEOUT     = 30 * time.Second
)

// Response is the envelope every request gets back.
type Response struct {
	Ok     bool            `json:"ok"`
	Reason string          `json:"reason,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RejectError lets a handler report a machine readable reason and still
// hand back data.
type RejectError struct {
	Reason string
	Err    error
	Data   interface{}
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Err.Error()
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func Reject(reason string, err error, data interface{}) error {
	return &RejectError{Reason: reason, Err: err, Data: data}
}

type Handler func(ctx context.Context, body []byte) (interface{}, error)

type Server struct {
	mu       sync.Mutex
	handlers map[MessageKind]Handler
	listener net.Listener
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: map[MessageKind]Handler{},
		logger:   logger,
	}
}

func (s *Server) Handle(kind MessageKind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Server) Listen(address string) error {
	listener, err := net.Listen(TCP, address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is done. Each connection carries
// one request and is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("listening", "address", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(READ_TIMEOUT))

	request, err := io.ReadAll(io.LimitReader(conn, MAX_REQUEST_SIZE))
	if err != nil {
		s.logger.Warn("failed to read request", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	if len(request) == 0 {
		s.logger.Warn("empty request", "remote", conn.RemoteAddr().String())
		return
	}

	msgKind := MessageKind(request[0])
	s.logger.Debug("received msg", "kind", msgKind.ToString())

	s.mu.Lock()
	h, ok := s.handlers[msgKind]
	s.mu.Unlock()

	var res Response
	if !ok {
		res = Response{Ok: false, Error: "unsupported message: " + msgKind.ToString()}
	} else {
		res = s.dispatch(ctx, h, request[1:])
	}

	enc, err := common.Encode(res)
	if err != nil {
		s.logger.Error("failed to encode response", "err", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(READ_TIMEOUT))
	_, err = conn.Write(enc)
	if err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) dispatch(ctx context.Context, h Handler, body []byte) Response {
	data, err := h(ctx, body)
	res := Response{Ok: err == nil}
	if err != nil {
		res.Error = err.Error()
		data = nil
		var rej *RejectError
		if errors.As(err, &rej) {
			res.Reason = rej.Reason
			data = rej.Data
		}
	}
	if data != nil {
		enc, encErr := json.Marshal(data)
		if encErr != nil {
			return Response{Ok: false, Error: encErr.Error()}
		}
		res.Data = enc
	}
	return res
}
