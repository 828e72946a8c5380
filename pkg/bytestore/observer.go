package bytestore

// AppendInfo describes a segment that was just stored.
type AppendInfo struct {
	// Offset is the stream position the segment starts at.
	Offset int64
	// Length is the stored segment length.
	Length int
}

// ReadInfo describes a completed read.
type ReadInfo struct {
	Offset int64
	Length int
}

// RejectInfo describes an append that stored nothing.
type RejectInfo struct {
	// Length is the requested append length.
	Length int
	// Err is ErrOutOfMemory or ErrCopyFault.
	Err error
}

// TeardownInfo describes what a teardown released.
type TeardownInfo struct {
	Segments int
	Bytes    int64
}

// Observer receives store lifecycle events. Callbacks run on the
// operation's goroutine after the store lock is released; they must not
// block for long.
type Observer interface {
	OnAppend(AppendInfo)
	OnRead(ReadInfo)
	OnReject(RejectInfo)
	OnTeardown(TeardownInfo)
}

// MultiObserver fans events out to several observers in order.
func MultiObserver(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) OnAppend(info AppendInfo) {
	for _, o := range m {
		o.OnAppend(info)
	}
}

func (m multiObserver) OnRead(info ReadInfo) {
	for _, o := range m {
		o.OnRead(info)
	}
}

func (m multiObserver) OnReject(info RejectInfo) {
	for _, o := range m {
		o.OnReject(info)
	}
}

func (m multiObserver) OnTeardown(info TeardownInfo) {
	for _, o := range m {
		o.OnTeardown(info)
	}
}

type nopObserver struct{}

func (nopObserver) OnAppend(AppendInfo)     {}
func (nopObserver) OnRead(ReadInfo)         {}
func (nopObserver) OnReject(RejectInfo)     {}
func (nopObserver) OnTeardown(TeardownInfo) {}
