package rpc

import "encoding/json"

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// Request is a JSON-RPC request or notification envelope.
// An ID of zero means the message is a notification and no response is
// expected; identifiers for real requests start at 1.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool { return r.ID == 0 }

// Response is a JSON-RPC response envelope. ID is a pointer because a
// response without an identifier is meaningful: it cannot be correlated to
// any outstanding request and is rendered generically.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}
