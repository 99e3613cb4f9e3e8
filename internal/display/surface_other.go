//go:build !linux

package display

import "nottray/pkg/logx"

// New returns the in-memory stub on platforms without a session bus daemon.
func New(log logx.Logger) (Surface, error) {
	log.Warn("no native surface on this platform, using stub")
	return NewStub(), nil
}
