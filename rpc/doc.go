// Package rpc
// Author: momentics <momentics@gmail.com>
//
// JSON-RPC 2.0 dispatch over jsonq for hioload-wire. Requests are routed by
// glob-matched method name, replies copy the request id token verbatim, and
// Pending correlates the responses a client receives with the calls it made.
package rpc
