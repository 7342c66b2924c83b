package events

// Pipe forwards events of type T into ch until the returned function is
// called. A full channel drops the event so a slow reader never blocks the
// publisher.
func Pipe[T Event](b *Bus, ch chan<- any) func() {
	return Subscribe(b, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// PipeStream forwards every event shown on /api/events. Log entries have
// their own stream and are left out.
func (b *Bus) PipeStream(ch chan<- any) func() {
	unsubs := []func(){
		Pipe[SessionStateEvent](b, ch),
		Pipe[RestartAttemptEvent](b, ch),
		Pipe[PropertyChangedEvent](b, ch),
		Pipe[PropertyProbedEvent](b, ch),
		Pipe[DeviceDiscoveryEvent](b, ch),
		Pipe[FrameStatsEvent](b, ch),
		Pipe[SnapshotCapturedEvent](b, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
