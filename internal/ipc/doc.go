// Package ipc is the JSON-RPC control plane between the ffui CLI/console and
// the ffuid daemon, carried over a unix domain socket.
//
// The server registers one service named FFUI whose methods map one-to-one
// onto queue engine operations plus daemon status, log tailing, and
// shutdown. The client wraps each method with a typed call; Dial uses a
// short timeout so a missing daemon surfaces immediately instead of hanging
// interactive commands.
package ipc
