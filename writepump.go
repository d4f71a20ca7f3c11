package nebula

import (
	"context"
	"net"
	"time"
)

// writePump is the single worker draining the RequestQueue, acquiring a
// stream id, and writing the framed bytes to the socket, spec.md §4.5.
// It mirrors the teacher's doTx() (go_tx.go): one goroutine, one socket
// writer, no mutex on the connection itself beyond the queue and pool it
// already serializes through.
type writePump struct {
	conn    net.Conn
	queue   *requestQueue
	ids     *streamIDPool
	pending *pendingTable
	cfg     config
	compress Compressor
	log     Logger
	instr   Instrumentation
	version byte

	onError func(error)
}

func (p *writePump) run(ctx context.Context) {
	for {
		desc, ok := p.queue.dequeue()
		if !ok {
			return // queue closed; anything still buffered is failed by the closing path.
		}

		id, err := p.ids.acquire(ctx)
		if err != nil {
			desc.sink.Error(Cancelled)
			p.instr.Cancellation(desc.token)
			continue
		}

		fw := newFrameWriter(p.version, id, OpQuery /* placeholder, overwritten below */, desc.tracing, false)
		fw.SetCompressor(p.compress)

		opcode, encErr := p.invokeWriter(desc, fw)
		if encErr != nil {
			p.ids.release(id)
			desc.sink.Error(newEncoderError(encErr))
			continue
		}
		fw.buf[3] = byte(opcode)

		// The descriptor must be visible to ReadPump before the frame
		// reaches the socket (spec.md §4.5 step 4 precedes step 5) — a
		// response cannot otherwise arrive before its sink is known.
		p.pending.put(id, desc)

		p.instr.BeginWrite(desc.token, opcode)
		out, finErr := fw.finish()
		if finErr != nil {
			p.pending.take(id)
			p.ids.release(id)
			p.instr.EndWrite(desc.token, finErr)
			desc.sink.Error(newEncoderError(finErr))
			continue
		}

		if p.cfg.sendTimeout > 0 {
			p.conn.SetWriteDeadline(time.Now().Add(p.cfg.sendTimeout))
		}
		_, writeErr := p.conn.Write(out)
		p.instr.EndWrite(desc.token, writeErr)
		if writeErr != nil {
			p.onError(newIoError(writeErr))
			return
		}
	}
}

// invokeWriter calls the caller's Writer capability, converting a panic
// into an error the way spec.md §9 preserves from the source: the writer
// capability's failure surfaces on the sink, never re-thrown to the pump.
func (p *writePump) invokeWriter(desc *requestDescriptor, fw *frameWriter) (opcode Opcode, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverAsError(r)
		}
	}()
	return desc.writer(fw)
}
