package wamp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the session lifecycle (spec.md §5b): Disconnected → Connected
// → Hello-Sent → Authenticating → Established → Closing → Closed. Modeled
// as a closed enum rather than a bag of booleans, per spec.md §9's
// guidance for the peer's session state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateHelloSent
	StateAuthenticating
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateHelloSent:
		return "hello-sent"
	case StateAuthenticating:
		return "authenticating"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// HelloMsg/WelcomeMsg/AbortMsg/GoodbyeMsg are the session-establishment
// envelopes exchanged before any RPC/pubsub traffic flows.
type HelloMsg struct {
	Realm string
	Roles []string
}

type WelcomeMsg struct {
	SessionID int64
}

type AbortMsg struct {
	Reason string
}

type GoodbyeMsg struct {
	Reason string
}

// ErrorMsg correlates a failed request back to its RequestID.
type ErrorMsg struct {
	RequestID int64
	Kind      MessageType
	Reason    string
}

// pendingRequest is a single outstanding request-ID's correlation slot.
// Call sites block on replyCh (buffered 1 for one-shot, unbounded-ish for
// progressive via repeated sends) until a matching reply or Error frame
// arrives, or the session tears down.
type pendingRequest struct {
	replyCh chan Frame
	errCh   chan error
	kind    MessageType
}

// subscriptionHandler receives decoded EventMsg payloads for a topic.
type subscriptionHandler func(EventMsg)

// invocationHandler answers a registered procedure's calls; returning an
// error sends an ErrorMsg back to the caller instead of a Yield.
type invocationHandler func(ctx context.Context, args []byte) (result []byte, err error)

// Session is the single actor owning connection state (spec.md §5b). An
// inbound reader goroutine feeds the actor loop started by Run; there is
// no outbound writer task: frames are passed to transport.Send directly,
// from queued actor commands or from the calling goroutine (Connect,
// Kill). The sessionActor state is only touched inside the actor loop.
type Session struct {
	transport Transport
	realm     string

	stateMu sync.RWMutex
	state   State

	nextRequestID int64 // atomic

	cmds    chan func(*sessionActor)
	inbound chan Frame
	done    chan struct{}
	closeErr error
}

// sessionActor is the mutable state touched only inside the actor loop.
type sessionActor struct {
	s *Session

	pending       map[int64]*pendingRequest
	subscriptions map[int64]subscriptionHandler // by subscription ID
	registrations map[int64]invocationHandler   // by registration ID

	awaitWelcome chan error // set by Connect, consumed once on Welcome/Abort
}

// NewSession constructs a session bound to a transport and realm; it does
// not dial or send Hello until Connect is called.
func NewSession(transport Transport, realm string) *Session {
	return &Session{
		transport: transport,
		realm:     realm,
		state:     StateDisconnected,
		cmds:      make(chan func(*sessionActor), 64),
		inbound:   make(chan Frame, 64),
		done:      make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

func (s *Session) nextReqID() int64 { return atomic.AddInt64(&s.nextRequestID, 1) }

// Err reports why Run returned, once it has (nil beforehand).
func (s *Session) Err() error { return s.closeErr }

// Connect moves Disconnected → Connected → Hello-Sent, sends Hello, and
// blocks until Welcome (→ Established) or Abort (→ Closed) arrives. Run
// must already be active in a separate goroutine reading the transport.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnected)
	s.setState(StateHelloSent)
	frame, err := EncodeFrame(TypeHello, HelloMsg{Realm: s.realm, Roles: []string{"caller", "callee", "publisher", "subscriber"}})
	if err != nil {
		return err
	}
	if err := s.transport.Send(frame); err != nil {
		s.setState(StateDisconnected)
		return &PeerNotConnected{Detail: err.Error()}
	}
	s.setState(StateAuthenticating)

	welcome := make(chan error, 1)
	s.cmds <- func(a *sessionActor) { a.awaitWelcome = welcome }

	select {
	case err := <-welcome:
		if err != nil {
			s.setState(StateClosed)
			return err
		}
		s.setState(StateEstablished)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return &PeerNotConnected{Detail: "session closed before welcome"}
	}
}

// Run drives the reader task and the actor loop until ctx is canceled or
// the transport fails; on return every pending request resolves with
// PeerNotConnected (spec.md §5b reconnection clause).
func (s *Session) Run(ctx context.Context) error {
	actor := &sessionActor{
		s:             s,
		pending:       map[int64]*pendingRequest{},
		subscriptions: map[int64]subscriptionHandler{},
		registrations: map[int64]invocationHandler{},
	}

	readerErr := make(chan error, 1)
	go func() {
		for {
			f, err := s.transport.Recv()
			if err != nil {
				readerErr <- err
				return
			}
			select {
			case s.inbound <- f:
			case <-s.done:
				return
			}
		}
	}()

	defer func() {
		s.setState(StateClosed)
		close(s.done)
		actor.failAllPending(&PeerNotConnected{Detail: "session closed"})
	}()

	for {
		select {
		case <-ctx.Done():
			s.closeErr = ctx.Err()
			return ctx.Err()
		case err := <-readerErr:
			s.closeErr = err
			return fmt.Errorf("wamp: transport closed: %w", err)
		case f := <-s.inbound:
			actor.handleFrame(f)
		case cmd := <-s.cmds:
			cmd(actor)
		}
	}
}

func (a *sessionActor) handleFrame(f Frame) {
	switch f.Type {
	case TypeWelcome:
		var msg WelcomeMsg
		_ = f.Decode(&msg)
		if a.awaitWelcome != nil {
			a.awaitWelcome <- nil
			a.awaitWelcome = nil
		}
	case TypeAbort:
		var msg AbortMsg
		_ = f.Decode(&msg)
		if a.awaitWelcome != nil {
			a.awaitWelcome <- &ProtocolError{Detail: "abort: " + msg.Reason}
			a.awaitWelcome = nil
		}
	case TypeGoodbye:
		a.failAllPending(&PeerNotConnected{Detail: "goodbye received"})
	case TypeError:
		var msg ErrorMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.errCh <- &ProtocolError{Detail: msg.Reason}
			delete(a.pending, msg.RequestID)
		}
	case TypeSubscribed:
		var msg SubscribedMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			delete(a.pending, msg.RequestID)
		}
	case TypeUnsubscribed:
		var msg UnsubscribedMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			delete(a.pending, msg.RequestID)
		}
	case TypeEvent:
		var msg EventMsg
		_ = f.Decode(&msg)
		if h, ok := a.subscriptions[msg.SubscriptionID]; ok {
			h(msg)
		}
	case TypePublished:
		var msg PublishedMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			delete(a.pending, msg.RequestID)
		}
	case TypeRegistered:
		var msg RegisteredMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			delete(a.pending, msg.RequestID)
		}
	case TypeUnregistered:
		var msg UnregisteredMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			delete(a.pending, msg.RequestID)
		}
	case TypeResult:
		var msg ResultMsg
		_ = f.Decode(&msg)
		if p, ok := a.pending[msg.RequestID]; ok {
			p.replyCh <- f
			if !msg.Progress {
				delete(a.pending, msg.RequestID)
			}
		}
	case TypeInvocation:
		a.handleInvocation(f)
	}
}

func (a *sessionActor) failAllPending(err error) {
	for id, p := range a.pending {
		p.errCh <- err
		delete(a.pending, id)
	}
}
