package nebula

import (
	"net"
	"time"
)

// readPump is the single worker reading response frames off the socket,
// demultiplexing by stream id, and streaming decoded items into the
// owning request's sink, spec.md §4.6. Mirrors the teacher's doRx()
// (go_rx.go) plus client.go's doReceive(): one goroutine, one socket
// reader.
type readPump struct {
	conn     net.Conn
	ids      *streamIDPool
	pending  *pendingTable
	cfg      config
	compress Compressor
	log      Logger
	instr    Instrumentation
	events   func() Sink // server-initiated EVENT frames, negative stream ids

	onError func(error)
}

func (p *readPump) run() {
	for {
		if p.cfg.receiveTimeout > 0 {
			p.conn.SetReadDeadline(time.Now().Add(p.cfg.receiveTimeout))
		} else {
			p.conn.SetReadDeadline(time.Time{})
		}

		fr, err := readFrameHeader(p.conn, p.compress)
		if err != nil {
			p.onError(newIoError(err))
			return
		}
		if !fr.Header.IsResponse() {
			p.onError(newIoError(errNotResponseFrame))
			return
		}

		if fr.Header.Stream < 0 {
			p.dispatchEvent(fr)
			continue
		}

		id := fr.Header.Stream
		desc := p.pending.take(id)
		if desc == nil {
			p.log.Warnf("nebula: response for unknown stream %d, dropped\n", id)
			continue
		}
		p.ids.release(id) // return the id before decoding: spec.md §4.6 edge case.

		p.instr.BeginRead(desc.token, id)
		p.deliver(desc, fr)
		p.instr.EndRead(desc.token, nil)

		if tid, ok := fr.Trace(); ok && desc.tracing {
			_ = tid // fetching the trace session is a nested request on
			// this same connection; left to the caller's reader
			// capability to issue if it wants the session detail, since
			// the core does not know the tracing-query wire shape
			// (spec.md §1's Non-goals).
		}
	}
}

// deliver routes one response frame to its descriptor's sink: a
// protocol-error frame terminates with ProtocolError, otherwise the
// descriptor's Reader capability streams items and the frame is drained
// on the way out regardless of how much of the body the capability
// consumed, keeping the socket aligned on the next frame boundary
// (spec.md §4.1, §8.6).
func (p *readPump) deliver(desc *requestDescriptor, fr *frameReader) {
	defer fr.drain()

	if protoErr, isErr := fr.isErrorFrame(); isErr {
		desc.sink.Error(protoErr)
		return
	}

	err := p.invokeReader(desc, fr)
	if err != nil {
		desc.sink.Error(newDecoderError(err))
		return
	}
	desc.sink.Complete()
}

// invokeReader calls the caller's Reader capability, converting a panic
// into a DecoderError the way spec.md §9 preserves from the source.
func (p *readPump) invokeReader(desc *requestDescriptor, fr *frameReader) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverAsError(r)
		}
	}()
	return desc.reader(fr, desc.sink.Next)
}

// dispatchEvent routes a server-initiated frame (negative stream id) to
// the connection-wide events sink, spec.md §9's reservation for a
// routing scheme the source never defines. A connection opened without
// Connection.OnEvent silently drops them, matching the source's
// behavior.
func (p *readPump) dispatchEvent(fr *frameReader) {
	defer fr.drain()
	sink := p.events()
	if sink == nil {
		return
	}
	if protoErr, isErr := fr.isErrorFrame(); isErr {
		sink.Error(protoErr)
		return
	}
	body := make([]byte, len(fr.decoded)-fr.pos)
	copy(body, fr.decoded[fr.pos:])
	sink.Next(body)
}
