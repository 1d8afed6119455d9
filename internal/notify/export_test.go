package notify

// WithSender exposes withSender for tests.
var WithSender = withSender
