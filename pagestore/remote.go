package pagestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/gomam/resource"
)

// Op identifies a page manager call crossing the client/server boundary.
type Op uint8

const (
	OpConnect Op = iota
	OpDisconnect
	OpIsEmpty
	OpHeaderPage
	OpReadPage
	OpAllocatePage
	OpWritePage
	OpWriteHeaderPage
	OpReleasePage
	OpDisposePage
	OpPageSize
	OpPageCount
	OpStats
	OpResetStatistics
)

func (op Op) String() string {
	switch op {
	case OpConnect:
		return "Connect"
	case OpDisconnect:
		return "Disconnect"
	case OpIsEmpty:
		return "IsEmpty"
	case OpHeaderPage:
		return "HeaderPage"
	case OpReadPage:
		return "ReadPage"
	case OpAllocatePage:
		return "AllocatePage"
	case OpWritePage:
		return "WritePage"
	case OpWriteHeaderPage:
		return "WriteHeaderPage"
	case OpReleasePage:
		return "ReleasePage"
	case OpDisposePage:
		return "DisposePage"
	case OpPageSize:
		return "PageSize"
	case OpPageCount:
		return "PageCount"
	case OpStats:
		return "Stats"
	case OpResetStatistics:
		return "ResetStatistics"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// Request is a page manager call. Every request carries the client id.
type Request struct {
	Client uuid.UUID
	Op     Op
	PageID PageID
	Data   []byte
}

// Response is the answer to a Request.
type Response struct {
	PageID PageID
	Data   []byte
	Bool   bool
	Int    int
	Int2   int
	Stats  Stats
	Err    error
}

// Transport carries requests to a page server. The wire format is left to
// implementations; Server itself is an in-process Transport.
type Transport interface {
	RoundTrip(ctx context.Context, req Request) (Response, error)
}

// Compile time check to ensure Server satisfies the Transport interface.
var _ Transport = (*Server)(nil)

// Server multiplexes many clients over one underlying Manager.
//
// It remembers which pages every client holds so that a disconnecting client
// cannot leak leases.
type Server struct {
	mu      sync.Mutex
	store   Manager
	clients map[uuid.UUID]*session
	rc      *resource.Controller
	logger  *slog.Logger
}

type session struct {
	leases map[PageID]int
	stats  Stats
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithResourceController limits in-flight requests, I/O and leases.
func WithResourceController(rc *resource.Controller) ServerOption {
	return func(s *Server) {
		s.rc = rc
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a page server in front of store.
func NewServer(store Manager, optFns ...ServerOption) *Server {
	s := &Server{
		store:   store,
		clients: make(map[uuid.UUID]*session),
		logger:  defaultOptions().logger,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ClientStats returns the counters accumulated for one client.
func (s *Server) ClientStats(id uuid.UUID) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.clients[id]
	if !ok {
		return Stats{}, false
	}
	return sess.stats, true
}

// RoundTrip implements Transport.
func (s *Server) RoundTrip(ctx context.Context, req Request) (Response, error) {
	if err := s.rc.Acquire(ctx); err != nil {
		return Response{}, err
	}
	defer s.rc.Release()

	if err := s.rc.AcquireIO(ctx, len(req.Data)); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Op == OpConnect {
		if _, ok := s.clients[req.Client]; !ok {
			s.clients[req.Client] = &session{leases: make(map[PageID]int)}
			s.logger.Debug("client connected", "client", req.Client)
		}
		return Response{Int: s.store.PageSize()}, nil
	}

	sess, ok := s.clients[req.Client]
	if !ok {
		return Response{Err: fmt.Errorf("%w: %s", ErrUnknownClient, req.Client)}, nil
	}

	resp := s.handle(sess, req)
	if req.Op == OpDisconnect {
		delete(s.clients, req.Client)
	}
	return resp, nil
}

func (s *Server) handle(sess *session, req Request) Response {
	switch req.Op {
	case OpDisconnect:
		held := 0
		for _, n := range sess.leases {
			held += n
		}
		if held > 0 {
			s.logger.Warn("client disconnected with leased pages", "client", req.Client, "pages", held)
			s.rc.Return(int64(held))
		}
		return Response{Int: held}

	case OpIsEmpty:
		return Response{Bool: s.store.IsEmpty()}

	case OpHeaderPage:
		p, err := s.store.HeaderPage()
		if err != nil {
			return Response{Err: err}
		}
		defer s.store.ReleasePage(p)
		sess.stats.Reads++
		return Response{PageID: HeaderPageID, Data: clonePage(p)}

	case OpReadPage:
		p, err := s.store.ReadPage(req.PageID)
		if err != nil {
			return Response{Err: err}
		}
		defer s.store.ReleasePage(p)
		if err := s.lease(sess, p.ID()); err != nil {
			return Response{Err: err}
		}
		sess.stats.Reads++
		return Response{PageID: p.ID(), Data: clonePage(p)}

	case OpAllocatePage:
		p, err := s.store.AllocatePage()
		if err != nil {
			return Response{Err: err}
		}
		defer s.store.ReleasePage(p)
		if err := s.lease(sess, p.ID()); err != nil {
			_ = s.store.DisposePage(p)
			return Response{Err: err}
		}
		sess.stats.Writes++
		return Response{PageID: p.ID(), Data: clonePage(p)}

	case OpWritePage:
		p := NewPage(req.PageID, s.store.PageSize())
		p.CopyFrom(req.Data)
		if err := s.store.WritePage(p); err != nil {
			return Response{Err: err}
		}
		sess.stats.Writes++
		return Response{}

	case OpWriteHeaderPage:
		p, err := s.store.HeaderPage()
		if err != nil {
			return Response{Err: err}
		}
		defer s.store.ReleasePage(p)
		p.CopyFrom(req.Data)
		if err := s.store.WriteHeaderPage(p); err != nil {
			return Response{Err: err}
		}
		sess.stats.Writes++
		return Response{}

	case OpReleasePage:
		s.unlease(sess, req.PageID)
		return Response{}

	case OpDisposePage:
		p, err := s.store.ReadPage(req.PageID)
		if err != nil {
			return Response{Err: err}
		}
		if err := s.store.DisposePage(p); err != nil {
			s.store.ReleasePage(p)
			return Response{Err: err}
		}
		s.unlease(sess, req.PageID)
		return Response{}

	case OpPageSize:
		return Response{Int: s.store.PageSize(), Int2: s.store.MinimumPageSize()}

	case OpPageCount:
		return Response{Int: s.store.PageCount()}

	case OpStats:
		return Response{Stats: sess.stats}

	case OpResetStatistics:
		sess.stats = Stats{}
		return Response{}

	default:
		return Response{Err: fmt.Errorf("unsupported operation %s", req.Op)}
	}
}

func (s *Server) lease(sess *session, id PageID) error {
	if err := s.rc.Lease(1); err != nil {
		return err
	}
	sess.leases[id]++
	return nil
}

func (s *Server) unlease(sess *session, id PageID) {
	n, ok := sess.leases[id]
	if !ok {
		return
	}
	if n <= 1 {
		delete(sess.leases, id)
	} else {
		sess.leases[id] = n - 1
	}
	s.rc.Return(1)
}

func clonePage(p *Page) []byte {
	return append([]byte(nil), p.Data()...)
}

// Compile time check to ensure RemoteManager satisfies the Manager interface.
var _ Manager = (*RemoteManager)(nil)

// RemoteManager is the client side of the page server. Every call is
// forwarded through the Transport with the client id prepended.
//
// The context passed to Dial is used for all calls.
type RemoteManager struct {
	ctx        context.Context
	transport  Transport
	client     uuid.UUID
	pageSize   int
	headerSize int
	pool       *pagePool
	closed     bool
}

// Dial registers a new client with the server behind t.
func Dial(ctx context.Context, t Transport, optFns ...Option) (*RemoteManager, error) {
	o := applyOptions(optFns)
	m := &RemoteManager{
		ctx:       ctx,
		transport: t,
		client:    uuid.New(),
	}
	resp, err := m.call(Request{Op: OpConnect})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	m.pageSize = resp.Int
	m.pool = newPagePool(m.pageSize, o.lockBytes, o.poolCapacity)

	hdr, err := m.call(Request{Op: OpHeaderPage})
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	m.headerSize = len(hdr.Data)
	return m, nil
}

// ClientID returns the id this client is registered under.
func (m *RemoteManager) ClientID() uuid.UUID { return m.client }

func (m *RemoteManager) call(req Request) (Response, error) {
	if m.closed {
		return Response{}, ErrClosed
	}
	req.Client = m.client
	resp, err := m.transport.RoundTrip(m.ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Err != nil {
		return Response{}, resp.Err
	}
	return resp, nil
}

// IsEmpty implements Manager.
func (m *RemoteManager) IsEmpty() bool {
	resp, err := m.call(Request{Op: OpIsEmpty})
	return err == nil && resp.Bool
}

// HeaderPage implements Manager.
func (m *RemoteManager) HeaderPage() (*Page, error) {
	resp, err := m.call(Request{Op: OpHeaderPage})
	if err != nil {
		return nil, err
	}
	p := NewLockedPage(HeaderPageID, len(resp.Data), m.pool.lockSize)
	copy(p.Data(), resp.Data)
	return p, nil
}

// ReadPage implements Manager.
func (m *RemoteManager) ReadPage(id PageID) (*Page, error) {
	resp, err := m.call(Request{Op: OpReadPage, PageID: id})
	if err != nil {
		return nil, err
	}
	p := m.pool.get(resp.PageID)
	copy(p.Data(), resp.Data)
	return p, nil
}

// AllocatePage implements Manager.
func (m *RemoteManager) AllocatePage() (*Page, error) {
	resp, err := m.call(Request{Op: OpAllocatePage})
	if err != nil {
		return nil, err
	}
	return m.pool.get(resp.PageID), nil
}

// WritePage implements Manager.
func (m *RemoteManager) WritePage(p *Page) error {
	if p.Size() != m.pageSize {
		return pageError("write", p.ID(), ErrPageSize)
	}
	_, err := m.call(Request{Op: OpWritePage, PageID: p.ID(), Data: p.Data()})
	return err
}

// WriteHeaderPage implements Manager.
func (m *RemoteManager) WriteHeaderPage(p *Page) error {
	_, err := m.call(Request{Op: OpWriteHeaderPage, PageID: HeaderPageID, Data: p.Data()})
	return err
}

// ReleasePage implements Manager.
func (m *RemoteManager) ReleasePage(p *Page) {
	if p == nil {
		return
	}
	if p.ID() != HeaderPageID {
		_, _ = m.call(Request{Op: OpReleasePage, PageID: p.ID()})
	}
	m.pool.put(p)
}

// DisposePage implements Manager.
func (m *RemoteManager) DisposePage(p *Page) error {
	if _, err := m.call(Request{Op: OpDisposePage, PageID: p.ID()}); err != nil {
		return err
	}
	m.pool.put(p)
	return nil
}

// PageSize implements Manager.
func (m *RemoteManager) PageSize() int { return m.pageSize }

// MinimumPageSize implements Manager.
func (m *RemoteManager) MinimumPageSize() int {
	resp, err := m.call(Request{Op: OpPageSize})
	if err != nil {
		return MinimumPageSize
	}
	return resp.Int2
}

// PageCount implements Manager.
func (m *RemoteManager) PageCount() int {
	resp, err := m.call(Request{Op: OpPageCount})
	if err != nil {
		return 0
	}
	return resp.Int
}

// Stats returns the counters the server recorded for this client plus the
// local pool counters.
func (m *RemoteManager) Stats() Stats {
	resp, err := m.call(Request{Op: OpStats})
	if err != nil {
		return Stats{}
	}
	s := resp.Stats
	s.PoolHits, s.PoolMisses = m.pool.hits, m.pool.misses
	return s
}

// ResetStatistics implements Manager.
func (m *RemoteManager) ResetStatistics() {
	_, _ = m.call(Request{Op: OpResetStatistics})
	m.pool.resetStats()
}

// Close disconnects from the server. The underlying store stays open.
func (m *RemoteManager) Close() error {
	if m.closed {
		return nil
	}
	_, err := m.call(Request{Op: OpDisconnect})
	m.closed = true
	return err
}
