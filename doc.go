// Package nebula implements the transport core of a client driver for a
// distributed wide-column datastore that speaks a length-prefixed binary
// request/response protocol over TCP.
//
// A Connection owns a single long-lived socket and multiplexes up to
// MaxStreams concurrently outstanding requests across it, each tagged
// with a one-byte stream id. Callers submit opaque writer/reader
// capabilities through Connection.Execute and receive results through a
// Sink; everything above framing and multiplexing — query semantics,
// result typing, retries, cluster topology — is deliberately out of
// scope and left to callers.
//
// connection instantiation steps:
//
//	cfg := DefaultSettings()
//	cfg["user"], cfg["password"] = "scott", "tiger"
//	conn, err := Open(ctx, "10.0.0.1:9042", cfg, nil, nil) // default logger, no instrumentation
//	sink := NewChannelSink(16)
//	conn.Execute(writeQuery("select * from ks.tbl"), decodeRows, token, sink)
package nebula
