package feed

// SetGreeter replaces how the hello frame is written to a new subscriber.
func SetGreeter(h *Hub, fn func(data []byte) error) {
	h.greet = func(_ *subscriber, data []byte) error { return fn(data) }
}
