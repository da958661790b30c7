//go:build linux
// +build linux

package reactor

import "time"

// Poller is the readiness notification backend of an EventLoop. All methods
// except Close must be called on the loop's thread.
type Poller interface {
	// Poll waits at most timeout and appends the ready channels to active.
	Poll(timeout time.Duration, active []*Channel) (time.Time, []*Channel)
	// UpdateChannel adds, modifies or deletes the OS registration of c.
	UpdateChannel(c *Channel)
	// RemoveChannel forgets c, its interest set must be empty.
	RemoveChannel(c *Channel)
	HasChannel(c *Channel) bool
	Close() error
}

func newDefaultPoller(loop *EventLoop) (Poller, error) {
	return newEpollPoller(loop)
}
