package rooms

// Conn is the registry's view of one live websocket connection. The
// handlers package implements it; tests substitute fakes.
//
// Send must not block: implementations enqueue onto a buffered writer and
// report an error if the connection is dead or its buffer is full. Kick
// asynchronously closes the connection with the given close code and
// reason, which drives the connection's normal cleanup path; calling it
// more than once is harmless.
type Conn interface {
	ID() string
	Send(v interface{}) error
	Kick(code int, reason string)
}
