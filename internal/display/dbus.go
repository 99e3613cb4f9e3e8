//go:build linux

package display

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"nottray/internal/notification"
	"nottray/pkg/logx"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"
)

// dbusSurface renders units through the session notification daemon.
type dbusSurface struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	log  logx.Logger

	mu      sync.Mutex
	next    Handle
	byDBus  map[uint32]Handle // daemon id -> handle
	byLocal map[Handle]uint32

	events chan Event
	sig    chan *dbus.Signal
	done   chan struct{}
}

// New returns a surface backed by the session D-Bus notification daemon, or
// the in-memory stub when the session bus is unavailable.
func New(log logx.Logger) (Surface, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Warn("session bus unavailable, using stub surface", logx.Err(err))
		return NewStub(), nil
	}

	s := &dbusSurface{
		conn:    conn,
		obj:     conn.Object(dbusNotifyDest, dbusNotifyPath),
		log:     log,
		byDBus:  map[uint32]Handle{},
		byLocal: map[Handle]uint32{},
		events:  make(chan Event, 64),
		sig:     make(chan *dbus.Signal, 64),
		done:    make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusNotifyPath),
		dbus.WithMatchInterface(dbusNotifyInterface),
	); err != nil {
		log.Warn("notification signal match failed", logx.Err(err))
	}
	conn.Signal(s.sig)
	go s.pump()
	return s, nil
}

func (s *dbusSurface) Show(u Unit) (Handle, error) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(u.Urgency)),
	}
	if u.SoundPath != "" {
		hints["sound-file"] = dbus.MakeVariant(u.SoundPath)
	}

	actions := make([]string, 0, len(u.Actions)*2)
	for key, label := range u.Actions {
		actions = append(actions, key, label)
	}

	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout)
	call := s.obj.Call(
		dbusNotifyInterface+".Notify",
		0,
		u.AppName,
		uint32(0),
		u.AppIcon,
		u.Summary,
		u.Body,
		actions,
		hints,
		int32(u.ExpireTimeout),
	)
	if call.Err != nil {
		return 0, call.Err
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.next++
	h := s.next
	s.byDBus[id] = h
	s.byLocal[h] = id
	s.mu.Unlock()

	s.emit(Event{Handle: h, Kind: EventDisplayed})
	return h, nil
}

func (s *dbusSurface) Close(h Handle) error {
	s.mu.Lock()
	id, ok := s.byLocal[h]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.obj.Call(dbusNotifyInterface+".CloseNotification", 0, id).Err
}

func (s *dbusSurface) Events() <-chan Event { return s.events }

// pump translates daemon signals into surface events.
func (s *dbusSurface) pump() {
	for sig := range s.sig {
		switch sig.Name {
		case dbusNotifyInterface + ".NotificationClosed":
			if len(sig.Body) < 2 {
				continue
			}
			id, _ := sig.Body[0].(uint32)
			reason, _ := sig.Body[1].(uint32)
			if h, ok := s.take(id); ok {
				s.emit(Event{Handle: h, Kind: EventClosed, Reason: closeReason(reason)})
			}
		case dbusNotifyInterface + ".ActionInvoked":
			if len(sig.Body) < 2 {
				continue
			}
			id, _ := sig.Body[0].(uint32)
			key, _ := sig.Body[1].(string)
			if h, ok := s.lookup(id); ok {
				s.emit(Event{Handle: h, Kind: EventActionInvoked, ActionKey: key})
			}
		}
	}
	close(s.done)
}

func (s *dbusSurface) lookup(id uint32) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byDBus[id]
	return h, ok
}

// take resolves and forgets a daemon id; closes are terminal.
func (s *dbusSurface) take(id uint32) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.byDBus[id]
	if ok {
		delete(s.byDBus, id)
		delete(s.byLocal, h)
	}
	return h, ok
}

func (s *dbusSurface) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("surface event dropped", logx.Int("kind", int(ev.Kind)))
	}
}

// closeReason maps daemon close codes onto the internal enum. The codes
// coincide with the freedesktop specification values.
func closeReason(code uint32) notification.CloseReason {
	switch code {
	case 1:
		return notification.ReasonExpired
	case 2:
		return notification.ReasonDismissed
	case 3:
		return notification.ReasonClosedByCall
	default:
		return notification.ReasonUndefined
	}
}
