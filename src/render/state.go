package render

// State is the lifecycle state of a window's presentation chain.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateReady
	StateRebuilding
	StateSuspended
	StateClosing
)

var stateNames = [...]string{
	StateClosed:     "closed",
	StateOpening:    "opening",
	StateReady:      "ready",
	StateRebuilding: "rebuilding",
	StateSuspended:  "suspended",
	StateClosing:    "closing",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// FrameMode says what kind of frame the engine is starting.
type FrameMode int

const (
	// FrameModeRender draws into the window.
	FrameModeRender FrameMode = iota
	// FrameModeParasite renders into a buffer that shares the host's surface.
	FrameModeParasite
	// FrameModeRefresh redraws without new content.
	FrameModeRefresh
)

func (m FrameMode) String() string {
	switch m {
	case FrameModeRender:
		return "render"
	case FrameModeParasite:
		return "parasite"
	case FrameModeRefresh:
		return "refresh"
	}
	return "unknown"
}

// ClearMask records which buffers of the acquired image have been cleared.
type ClearMask uint8

const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
	ClearStencil
)

// Has reports whether every bit of m2 is set.
func (m ClearMask) Has(m2 ClearMask) bool {
	return m&m2 == m2
}

// Thread identifies the engine thread issuing a call. The window only logs it.
type Thread interface {
	Name() string
}
