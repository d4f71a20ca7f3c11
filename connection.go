package nebula

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// State is the Connection lifecycle spec.md §3 names: Connecting →
// Ready → Closed, the last transition one-way and absorbing.
type State int32

const (
	Connecting State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// protocolVersion is the byte this core negotiates in the handshake
// (spec.md §6: "protocol-version-parameterized").
const protocolVersion byte = 4

// Connection owns the socket, both pumps, the stream-id pool, the
// pending table and the admission queue for one endpoint, spec.md §3's
// Ownership model. Mirrors the teacher's Transport/Client pairing
// (transport.go, client.go) collapsed into a single type, since this
// core has exactly one writer and one reader per socket.
type Connection struct {
	conn net.Conn
	cfg  config

	queue    *requestQueue
	ids      *streamIDPool
	pending  *pendingTable
	compress Compressor
	log      Logger
	instr    Instrumentation

	state atomic.Int32

	cancel context.CancelFunc
	eg     *errgroup.Group

	causeOnce   sync.Once
	cause       error
	intentional atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once

	listenersMu sync.Mutex
	listeners   []func(error)

	eventsMu sync.Mutex
	events   Sink
}

// Open performs the TCP connect, applies the socket options spec.md §6
// requires, spawns both pumps, and runs the handshake before returning a
// Ready connection. It fails fast — and leaves no goroutines running —
// if the dial, socket setup, or handshake fails.
func Open(ctx context.Context, address string, setts Settings, log Logger, instr Instrumentation) (*Connection, error) {
	if log == nil {
		log = defaultLogger
	}
	if instr == nil {
		instr = noopInstrumentation{}
	}
	cfg := parseConfig(setts)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if err := applySocketOptions(conn, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	// The pumps' lifetime context is independent of the caller's ctx: ctx
	// only bounds how long Open itself waits for the dial and handshake to
	// finish, not how long the resulting Connection stays open.
	cctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(cctx)

	c := &Connection{
		conn:     conn,
		cfg:      cfg,
		queue:    newRequestQueue(cfg.queueBound),
		ids:      newStreamIDPool(),
		pending:  newPendingTable(),
		compress: LookupCompressor(cfg.compressionName),
		log:      log,
		instr:    instr,
		cancel:   cancel,
		eg:       eg,
		closed:   make(chan struct{}),
	}
	c.state.Store(int32(Connecting))

	// force the socket and queue closed the moment egCtx is cancelled —
	// by explicit Close or by either pump reporting a fault — so a
	// pump blocked on a read or a blocking queue send wakes immediately.
	go func() {
		<-egCtx.Done()
		c.conn.Close()
		c.queue.close()
	}()

	wp := &writePump{
		conn: c.conn, queue: c.queue, ids: c.ids, pending: c.pending,
		cfg: cfg, compress: c.compress, log: log, instr: instr,
		version: protocolVersion, onError: c.reportFailure,
	}
	rp := &readPump{
		conn: c.conn, ids: c.ids, pending: c.pending, cfg: cfg,
		compress: c.compress, log: log, instr: instr, onError: c.reportFailure,
		events: c.eventsSink,
	}

	eg.Go(func() error { wp.run(egCtx); return nil })
	eg.Go(func() error { rp.run(); return nil })

	go func() {
		c.eg.Wait()
		c.finishClose()
	}()

	handshakeErr := make(chan error, 1)
	go func() { handshakeErr <- c.handshake() }()

	select {
	case err := <-handshakeErr:
		if err != nil {
			c.intentional.Store(true)
			c.cancel()
			<-c.closed
			return nil, err
		}
	case <-ctx.Done():
		c.intentional.Store(true)
		c.cancel()
		<-c.closed
		return nil, ctx.Err()
	}

	c.state.Store(int32(Ready))
	c.log.Infof("nebula: connection to %s ready (protocol v%d)\n", address, protocolVersion)
	return c, nil
}

func (c *Connection) eventsSink() Sink {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	return c.events
}

// OnEvent registers the sink that receives server-initiated EVENT frames
// (negative stream ids), the minimal routing spec.md §9 reserves without
// defining. Only one listener is supported; registering again replaces
// it.
func (c *Connection) OnEvent(sink Sink) {
	c.eventsMu.Lock()
	c.events = sink
	c.eventsMu.Unlock()
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Execute enqueues a request built from a Writer capability (serializes
// the body, declares the opcode) and a Reader capability (decodes the
// body into a lazy item sequence), tagged with token for
// instrumentation, streaming results into sink. It fails with Cancelled
// if the connection is already closed.
func (c *Connection) Execute(writer Writer, reader Reader, token Token, sink Sink) error {
	return c.execute(writer, reader, token, sink, false)
}

func (c *Connection) execute(writer Writer, reader Reader, token Token, sink Sink, tracing bool) error {
	if State(c.state.Load()) == Closed {
		return Cancelled
	}
	desc := &requestDescriptor{
		writer: writer, reader: reader, token: token,
		sink: guardSink(sink), tracing: tracing,
	}
	return c.queue.enqueue(desc)
}

// Close tears the connection down: idempotent, stops accepting new
// requests, drains the PendingTable failing every in-flight sink with
// Cancelled, and does not notify on-failure listeners — this is the
// caller asking to stop, not a fault.
func (c *Connection) Close() error {
	c.intentional.Store(true)
	c.cancel()
	<-c.closed
	return nil
}

// OnFailure registers a single-shot listener delivered at most once, the
// moment an I/O fault closes the connection out from under its caller.
// Registering after the connection has already failed invokes listener
// immediately with the recorded cause.
func (c *Connection) OnFailure(listener func(err error)) {
	c.listenersMu.Lock()
	if State(c.state.Load()) == Closed && c.cause != nil {
		cause := c.cause
		c.listenersMu.Unlock()
		listener(cause)
		return
	}
	c.listeners = append(c.listeners, listener)
	c.listenersMu.Unlock()
}

// reportFailure is the pumps' onError hook: the first call records the
// cause and cancels the shared context, waking the other pump; later
// calls are no-ops, preserving "notified exactly once".
func (c *Connection) reportFailure(err error) {
	if !c.intentional.Load() {
		c.causeOnce.Do(func() {
			c.cause = err
			c.log.Errorf("nebula: connection failed: %v\n", err)
		})
	}
	c.cancel()
}

// finishClose runs exactly once, after both pumps have exited (whether
// from an explicit Close or from reportFailure's cancellation): it flips
// the state to Closed, drains the pending table failing each sink with
// Cancelled, notifies any OnFailure listeners if the close was caused by
// a real fault, and drops the listener slice to break reference cycles.
func (c *Connection) finishClose() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		c.conn.Close()
		c.queue.close()

		for _, desc := range c.pending.drain() {
			desc.sink.Error(Cancelled)
			c.instr.Cancellation(desc.token)
		}
		for _, desc := range c.queue.drainUnsent() {
			desc.sink.Error(Cancelled)
			c.instr.Cancellation(desc.token)
		}

		if c.cause != nil {
			c.listenersMu.Lock()
			listeners := c.listeners
			c.listeners = nil
			c.listenersMu.Unlock()
			for _, l := range listeners {
				l(c.cause)
			}
		} else {
			c.listenersMu.Lock()
			c.listeners = nil
			c.listenersMu.Unlock()
		}
		close(c.closed)
	})
}

// handshake issues the OPTIONS/SUPPORTED negotiation followed by the READY
// exchange synchronously using Execute internally with a blocking sink
// adapter, per spec.md §4.7 — the pumps must already be running before
// this call, since it rides the same queue/pump machinery every other
// request uses.
func (c *Connection) handshake() error {
	if err := c.sendOptions(); err != nil {
		return err
	}
	authRequired, err := c.sendReady()
	if err != nil {
		return err
	}
	if !authRequired {
		return nil
	}
	if !c.cfg.hasCredentials() {
		return InvalidCredentials
	}
	return c.sendAuthenticate()
}

// sendOptions issues OPTIONS and parses the server's SUPPORTED body,
// validating the configured cql_version and (if one is negotiated)
// compression name against what the server actually advertises, instead
// of blindly trusting Config the way sendReady's STARTUP would otherwise
// do on its own.
func (c *Connection) sendOptions() error {
	sink := NewChannelSink(1)
	var supported map[string][]string
	writer := func(w FrameWriter) (Opcode, error) {
		return OpOptions, nil
	}
	reader := func(r FrameReader, items func(interface{})) error {
		body, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		supported = readStringMultimap(body)
		return nil
	}
	if err := c.execute(writer, reader, NewToken(), sink, false); err != nil {
		return err
	}
	for range sink.Items() {
	}
	if err := sink.Err(); err != nil {
		return err
	}
	return c.validateSupported(supported)
}

func (c *Connection) validateSupported(supported map[string][]string) error {
	if versions, ok := supported["CQL_VERSION"]; ok && !containsOption(versions, c.cfg.cqlVersion) {
		return errors.Wrapf(ErrUnsupportedOption, "cql_version %q not offered by server (offers %v)", c.cfg.cqlVersion, versions)
	}
	if c.compress != nil {
		if names, ok := supported["COMPRESSION"]; ok && !containsOption(names, c.compress.Name()) {
			return errors.Wrapf(ErrUnsupportedOption, "compression %q not offered by server (offers %v)", c.compress.Name(), names)
		}
	}
	return nil
}

func (c *Connection) sendReady() (authRequired bool, err error) {
	sink := NewChannelSink(1)
	writer := func(w FrameWriter) (Opcode, error) {
		buf := writeStringMap(nil, map[string]string{"CQL_VERSION": c.cfg.cqlVersion})
		if c.compress != nil {
			buf = writeStringMap(nil, map[string]string{
				"CQL_VERSION": c.cfg.cqlVersion,
				"COMPRESSION": c.compress.Name(),
			})
		}
		_, werr := w.Write(buf)
		return OpStartup, werr
	}
	reader := func(r FrameReader, items func(interface{})) error {
		b := make([]byte, 1)
		if _, err := r.Read(b); err != nil {
			return err
		}
		items(b[0] != 0)
		return nil
	}
	if err := c.execute(writer, reader, NewToken(), sink, false); err != nil {
		return false, err
	}
	for item := range sink.Items() {
		authRequired = item.(bool)
	}
	return authRequired, sink.Err()
}

func (c *Connection) sendAuthenticate() error {
	sink := NewChannelSink(1)
	writer := func(w FrameWriter) (Opcode, error) {
		buf := writeShortString(nil, c.cfg.user)
		buf = writeShortString(buf, c.cfg.password)
		_, werr := w.Write(buf)
		return OpAuthResponse, werr
	}
	reader := func(r FrameReader, items func(interface{})) error {
		return nil // success is simply the absence of an ERROR frame.
	}
	if err := c.execute(writer, reader, NewToken(), sink, false); err != nil {
		return err
	}
	for range sink.Items() {
	}
	return sink.Err()
}
