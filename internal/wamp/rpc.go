package wamp

import "context"

// SubscribeMsg/SubscribedMsg/UnsubscribeMsg/UnsubscribedMsg/EventMsg are
// the Subscriber-role envelopes (spec.md §5b).
type SubscribeMsg struct {
	RequestID int64
	Topic     string
}

type SubscribedMsg struct {
	RequestID      int64
	SubscriptionID int64
}

type UnsubscribeMsg struct {
	RequestID      int64
	SubscriptionID int64
}

type UnsubscribedMsg struct {
	RequestID int64
}

type EventMsg struct {
	SubscriptionID int64
	Topic          string
	Args           []byte
}

// PublishMsg/PublishedMsg are the Publisher-role envelopes; Ack requests
// a Published acknowledgement (otherwise the publish is fire-and-forget).
type PublishMsg struct {
	RequestID int64
	Topic     string
	Args      []byte
	Ack       bool
}

type PublishedMsg struct {
	RequestID     int64
	PublicationID int64
}

// RegisterMsg/RegisteredMsg/UnregisterMsg/UnregisteredMsg/InvocationMsg/
// YieldMsg are the Callee-role envelopes.
type RegisterMsg struct {
	RequestID int64
	Procedure string
}

type RegisteredMsg struct {
	RequestID      int64
	RegistrationID int64
}

type UnregisterMsg struct {
	RequestID      int64
	RegistrationID int64
}

type UnregisteredMsg struct {
	RequestID int64
}

type InvocationMsg struct {
	RequestID      int64
	RegistrationID int64
	Procedure      string
	Args           []byte
}

type YieldMsg struct {
	RequestID int64
	Result    []byte
	Progress  bool
}

// CallMsg/CancelMsg/ResultMsg are the Caller-role envelopes. CancelMsg's
// Mode distinguishes the two cancellation semantics of spec.md §5b:
// "kill" (router still delivers a terminal result) and "killnowait"
// (caller simply stops waiting).
type CallMsg struct {
	RequestID   int64
	Procedure   string
	Args        []byte
	Progressive bool
}

type CancelMsg struct {
	RequestID int64
	Mode      string
}

type ResultMsg struct {
	RequestID int64
	Result    []byte
	Progress  bool
}

// request sends frame (tagged with reqID) and blocks for its one
// terminal reply, registering the pending slot and performing the send
// from inside the actor loop so no reply can race ahead of registration.
func (s *Session) request(ctx context.Context, reqID int64, kind MessageType, frame Frame) (Frame, error) {
	replyCh := make(chan Frame, 1)
	errCh := make(chan error, 1)
	registered := make(chan error, 1)
	s.cmds <- func(a *sessionActor) {
		a.pending[reqID] = &pendingRequest{replyCh: replyCh, errCh: errCh, kind: kind}
		if err := s.transport.Send(frame); err != nil {
			delete(a.pending, reqID)
			registered <- err
			return
		}
		registered <- nil
	}
	select {
	case err := <-registered:
		if err != nil {
			return Frame{}, &PeerNotConnected{Detail: err.Error()}
		}
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, &PeerNotConnected{Detail: "session closed"}
	}
	select {
	case f := <-replyCh:
		return f, nil
	case err := <-errCh:
		return Frame{}, err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, &PeerNotConnected{Detail: "session closed"}
	}
}

// runCmd blocks until fn has executed inside the actor loop.
func (s *Session) runCmd(ctx context.Context, fn func(*sessionActor)) error {
	done := make(chan struct{})
	s.cmds <- func(a *sessionActor) {
		fn(a)
		close(done)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return &PeerNotConnected{Detail: "session closed"}
	}
}

// Subscribe registers handler for topic and blocks for the router's
// Subscribed acknowledgement.
func (s *Session) Subscribe(ctx context.Context, topic string, handler func(EventMsg)) (int64, error) {
	if s.State() != StateEstablished {
		return 0, &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeSubscribe, SubscribeMsg{RequestID: reqID, Topic: topic})
	if err != nil {
		return 0, err
	}
	reply, err := s.request(ctx, reqID, TypeSubscribe, frame)
	if err != nil {
		return 0, err
	}
	var msg SubscribedMsg
	if err := reply.Decode(&msg); err != nil {
		return 0, err
	}
	if err := s.runCmd(ctx, func(a *sessionActor) { a.subscriptions[msg.SubscriptionID] = handler }); err != nil {
		return 0, err
	}
	return msg.SubscriptionID, nil
}

// Unsubscribe tears down a prior Subscribe.
func (s *Session) Unsubscribe(ctx context.Context, subscriptionID int64) error {
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeUnsubscribe, UnsubscribeMsg{RequestID: reqID, SubscriptionID: subscriptionID})
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, reqID, TypeUnsubscribe, frame); err != nil {
		return err
	}
	return s.runCmd(ctx, func(a *sessionActor) { delete(a.subscriptions, subscriptionID) })
}

// Publish sends an event to a topic; when ack is true it blocks for the
// router's Published confirmation, otherwise it is fire-and-forget.
func (s *Session) Publish(ctx context.Context, topic string, args []byte, ack bool) error {
	if s.State() != StateEstablished {
		return &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypePublish, PublishMsg{RequestID: reqID, Topic: topic, Args: args, Ack: ack})
	if err != nil {
		return err
	}
	if !ack {
		return s.transport.Send(frame)
	}
	_, err = s.request(ctx, reqID, TypePublish, frame)
	return err
}

// Register exposes procedure as an RPC target; invocations run handler
// in a fresh goroutine per call and reply with Yield or Error.
func (s *Session) Register(ctx context.Context, procedure string, handler func(ctx context.Context, args []byte) ([]byte, error)) (int64, error) {
	if s.State() != StateEstablished {
		return 0, &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeRegister, RegisterMsg{RequestID: reqID, Procedure: procedure})
	if err != nil {
		return 0, err
	}
	reply, err := s.request(ctx, reqID, TypeRegister, frame)
	if err != nil {
		return 0, err
	}
	var msg RegisteredMsg
	if err := reply.Decode(&msg); err != nil {
		return 0, err
	}
	if err := s.runCmd(ctx, func(a *sessionActor) { a.registrations[msg.RegistrationID] = handler }); err != nil {
		return 0, err
	}
	return msg.RegistrationID, nil
}

// Unregister withdraws a prior Register.
func (s *Session) Unregister(ctx context.Context, registrationID int64) error {
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeUnregister, UnregisterMsg{RequestID: reqID, RegistrationID: registrationID})
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, reqID, TypeUnregister, frame); err != nil {
		return err
	}
	return s.runCmd(ctx, func(a *sessionActor) { delete(a.registrations, registrationID) })
}

func (a *sessionActor) handleInvocation(f Frame) {
	var msg InvocationMsg
	if err := f.Decode(&msg); err != nil {
		return
	}
	handler, ok := a.registrations[msg.RegistrationID]
	if !ok {
		errFrame, encErr := EncodeFrame(TypeError, ErrorMsg{RequestID: msg.RequestID, Kind: TypeInvocation, Reason: "no such registration"})
		if encErr == nil {
			_ = a.s.transport.Send(errFrame)
		}
		return
	}
	go func() {
		result, err := handler(context.Background(), msg.Args)
		if err != nil {
			errFrame, encErr := EncodeFrame(TypeError, ErrorMsg{RequestID: msg.RequestID, Kind: TypeInvocation, Reason: err.Error()})
			if encErr == nil {
				_ = a.s.transport.Send(errFrame)
			}
			return
		}
		yieldFrame, encErr := EncodeFrame(TypeYield, YieldMsg{RequestID: msg.RequestID, Result: result})
		if encErr == nil {
			_ = a.s.transport.Send(yieldFrame)
		}
	}()
}

// Call is the fire-and-wait variant: block for exactly one Result.
func (s *Session) Call(ctx context.Context, procedure string, args []byte) ([]byte, error) {
	if s.State() != StateEstablished {
		return nil, &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeCall, CallMsg{RequestID: reqID, Procedure: procedure, Args: args})
	if err != nil {
		return nil, err
	}
	reply, err := s.request(ctx, reqID, TypeCall, frame)
	if err != nil {
		return nil, err
	}
	var msg ResultMsg
	if err := reply.Decode(&msg); err != nil {
		return nil, err
	}
	return msg.Result, nil
}

// PendingCall is the one-shot variant: the caller owns the handle and
// decides when (or whether) to Await it.
type PendingCall struct {
	s       *Session
	reqID   int64
	replyCh chan Frame
	errCh   chan error
}

// CallOneShot issues a call without blocking for its result.
func (s *Session) CallOneShot(ctx context.Context, procedure string, args []byte) (*PendingCall, error) {
	if s.State() != StateEstablished {
		return nil, &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeCall, CallMsg{RequestID: reqID, Procedure: procedure, Args: args})
	if err != nil {
		return nil, err
	}
	replyCh := make(chan Frame, 1)
	errCh := make(chan error, 1)
	registered := make(chan error, 1)
	s.cmds <- func(a *sessionActor) {
		a.pending[reqID] = &pendingRequest{replyCh: replyCh, errCh: errCh, kind: TypeCall}
		if err := s.transport.Send(frame); err != nil {
			delete(a.pending, reqID)
			registered <- err
			return
		}
		registered <- nil
	}
	select {
	case err := <-registered:
		if err != nil {
			return nil, &PeerNotConnected{Detail: err.Error()}
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, &PeerNotConnected{Detail: "session closed"}
	}
	return &PendingCall{s: s, reqID: reqID, replyCh: replyCh, errCh: errCh}, nil
}

// Await blocks for the one-shot call's terminal result.
func (p *PendingCall) Await(ctx context.Context) ([]byte, error) {
	select {
	case f := <-p.replyCh:
		var msg ResultMsg
		if err := f.Decode(&msg); err != nil {
			return nil, err
		}
		return msg.Result, nil
	case err := <-p.errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.s.done:
		return nil, &PeerNotConnected{Detail: "session closed"}
	}
}

// KillNoWait stops the caller from waiting; any terminal result the
// router still delivers is dropped since the pending slot is removed.
func (p *PendingCall) KillNoWait() {
	go func() { p.s.cmds <- func(a *sessionActor) { delete(a.pending, p.reqID) } }()
}

// Kill asks the router to cancel in place; unlike KillNoWait the pending
// slot stays registered so the router's terminal result still arrives.
func (p *PendingCall) Kill() error {
	frame, err := EncodeFrame(TypeCancel, CancelMsg{RequestID: p.reqID, Mode: "kill"})
	if err != nil {
		return err
	}
	return p.s.transport.Send(frame)
}

// ProgressiveCall is the progressive variant: the caller consumes a
// result stream via repeated Next calls.
type ProgressiveCall struct {
	s        *Session
	reqID    int64
	resultCh chan Frame
	errCh    chan error
	canceled bool
}

// CallProgressive issues a call that may yield multiple intermediate
// results before a final one.
func (s *Session) CallProgressive(ctx context.Context, procedure string, args []byte) (*ProgressiveCall, error) {
	if s.State() != StateEstablished {
		return nil, &PeerNotConnected{Detail: "session is " + s.State().String()}
	}
	reqID := s.nextReqID()
	frame, err := EncodeFrame(TypeCall, CallMsg{RequestID: reqID, Procedure: procedure, Args: args, Progressive: true})
	if err != nil {
		return nil, err
	}
	resultCh := make(chan Frame, 8)
	errCh := make(chan error, 1)
	registered := make(chan error, 1)
	s.cmds <- func(a *sessionActor) {
		a.pending[reqID] = &pendingRequest{replyCh: resultCh, errCh: errCh, kind: TypeCall}
		if err := s.transport.Send(frame); err != nil {
			delete(a.pending, reqID)
			registered <- err
			return
		}
		registered <- nil
	}
	select {
	case err := <-registered:
		if err != nil {
			return nil, &PeerNotConnected{Detail: err.Error()}
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, &PeerNotConnected{Detail: "session closed"}
	}
	return &ProgressiveCall{s: s, reqID: reqID, resultCh: resultCh, errCh: errCh}, nil
}

// Next blocks for the next item; final is true once no further items
// will arrive (the terminal Result, or an error/cancellation).
func (p *ProgressiveCall) Next(ctx context.Context) (result []byte, final bool, err error) {
	select {
	case f := <-p.resultCh:
		var msg ResultMsg
		if derr := f.Decode(&msg); derr != nil {
			return nil, true, derr
		}
		return msg.Result, !msg.Progress || p.canceled, nil
	case e := <-p.errCh:
		return nil, true, e
	case <-ctx.Done():
		return nil, true, ctx.Err()
	case <-p.s.done:
		return nil, true, &PeerNotConnected{Detail: "session closed"}
	}
}

// KillNoWait stops the caller consuming the stream; the pending slot is
// dropped so any further router-delivered items are discarded.
func (p *ProgressiveCall) KillNoWait() {
	p.canceled = true
	go func() { p.s.cmds <- func(a *sessionActor) { delete(a.pending, p.reqID) } }()
}

// Kill asks the router to cancel in place; per spec.md §5b the canceled
// flag toggles the stream from "still expecting terminal error" to "next
// result is final", so Next keeps being called until final==true.
func (p *ProgressiveCall) Kill() error {
	p.canceled = true
	frame, err := EncodeFrame(TypeCancel, CancelMsg{RequestID: p.reqID, Mode: "kill"})
	if err != nil {
		return err
	}
	return p.s.transport.Send(frame)
}
