package internal

// DoneChan signals completion by being closed.
type DoneChan chan struct{}

// DoneFunc triggers a stop and returns a channel that closes once the
// stop has completed.
type DoneFunc func() DoneChan
