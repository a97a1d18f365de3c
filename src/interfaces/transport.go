package interfaces

// -----------------------------------------------------------------------------
// ITransport is one open streaming socket to the feed.
// -----------------------------------------------------------------------------

type ITransport interface {
	// Send queues a text frame. Frames sent while not open are dropped with an error.
	Send(data []byte) error

	// -----------------------------------------------------------------------------
	// Close shuts the socket down. It is safe to call more than once.
	Close() error
}

// -----------------------------------------------------------------------------
// ITransportListener receives socket events. Implementations of IDialer
// deliver every callback on the listener's event loop, never concurrently.
// -----------------------------------------------------------------------------

type ITransportListener interface {
	OnOpen()
	OnMessage(data []byte)
	OnError(err error)
	OnClose()
}

// -----------------------------------------------------------------------------
// IDialer opens transports.
// -----------------------------------------------------------------------------

type IDialer interface {
	// Dial starts connecting and returns at once. The outcome is reported via
	// OnOpen, or via OnError / OnClose when the attempt fails.
	Dial(url string, listener ITransportListener) (ITransport, error)
}
