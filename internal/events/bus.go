package events

import (
	"time"

	"github.com/kelindar/event"

	"github.com/smazurov/uvcctl/internal/devices"
	"github.com/smazurov/uvcctl/internal/logging"
)

// Bus delivers typed events to subscribers through a kelindar/event
// dispatcher. Each event type has its own subscriber list.
type Bus struct {
	dispatcher *event.Dispatcher
}

func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Subscribe registers fn for events of type T and returns the function that
// removes it.
func Subscribe[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// emit publishes an event held as the Event interface under its concrete
// type, which is what the dispatcher keys subscribers by.
type emit func(*event.Dispatcher, Event)

func route[T Event]() emit {
	return func(d *event.Dispatcher, ev Event) { event.Publish(d, ev.(T)) }
}

var routes = map[uint32]emit{
	TypeSessionState:     route[SessionStateEvent](),
	TypeRestartAttempt:   route[RestartAttemptEvent](),
	TypePropertyChanged:  route[PropertyChangedEvent](),
	TypePropertyProbed:   route[PropertyProbedEvent](),
	TypeDeviceDiscovery:  route[DeviceDiscoveryEvent](),
	TypeFrameStats:       route[FrameStatsEvent](),
	TypeSnapshotCaptured: route[SnapshotCapturedEvent](),
	TypeLogEntry:         route[LogEntryEvent](),
}

// Publish delivers ev to the subscribers of its type. Events of a type the
// bus does not know are dropped.
func (b *Bus) Publish(ev Event) {
	if send, ok := routes[ev.Type()]; ok {
		send(b.dispatcher, ev)
	}
}

// BroadcastDeviceDiscovery implements devices.EventBroadcaster.
func (b *Bus) BroadcastDeviceDiscovery(action string, device devices.DeviceInfo, timestamp string) {
	b.Publish(DeviceDiscoveryEvent{
		DeviceInfo: device,
		HighRes:    device.HighRes(),
		Action:     action,
		Timestamp:  timestamp,
	})
}

// PublishLogEntry is the logging.LogCallback that feeds /api/logs/stream.
func (b *Bus) PublishLogEntry(entry logging.LogEntry) {
	b.Publish(NewLogEntryEvent(entry))
}

func NewLogEntryEvent(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// Now is the timestamp every event carries.
func Now() string {
	return time.Now().Format(time.RFC3339)
}
