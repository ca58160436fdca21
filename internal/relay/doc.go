// Package relay runs registry GETs in a separate trusted process and lets
// the engine reach it over JSON-RPC on a Unix domain socket.
//
// The server wraps a transport.Transport (normally transport.Direct) and
// returns each reply as status, headers and body without interpretation. The
// client implements transport.Transport itself, so the fetch client cannot
// tell whether a lookup went direct or through the relay. Deadlines travel
// with the request; a relay-side timeout comes back flagged and surfaces as
// context.DeadlineExceeded on the caller.
package relay
