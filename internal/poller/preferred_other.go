//go:build unix && !linux

package poller

func newPreferred() (Poller, error) {
	return NewPoll(), nil
}
