// Package rpc implements the JSON-RPC 2.0 wire layer spoken by LSP servers
// over stdio: Content-Length framed messages, request/response/notification
// envelopes, and construction of the small set of requests lspwire knows how
// to send.
//
// # Framing
//
// Every message on the wire is one frame:
//
//	Content-Length: <decimal byte count>\r\n
//	\r\n
//	<exactly that many bytes of UTF-8 JSON>
//
// Encode produces a frame from an envelope. Decoder consumes a byte stream one
// frame at a time. Decoding is deliberately forgiving: a line that is not a
// Content-Length header, a length that does not parse, or a body that is not
// valid JSON are all surfaced to the caller as recoverable conditions rather
// than terminating the stream, because a language server in a degraded state
// will occasionally emit diagnostic noise on the same pipe as its protocol
// traffic.
//
// # Envelopes
//
// Request carries an identifier only when a response is expected; didOpen,
// didClose, didChange and exit are notifications and never carry one. Builder
// returns both the structured envelope and its encoded frame, so callers that
// need the envelope for bookkeeping never re-decode their own output.
package rpc
