package genie

import "fmt"

// LinkState is the phase of the receive state machine
type LinkState byte

const (
	Idle                      LinkState = iota
	WaitAckOrNak                        // A write was sent, waiting for ACK/NAK
	WaitReportHeader                    // A read was sent, waiting for the ReportObj lead byte
	ReceivingReport                     // Accumulating a reply frame
	ReceivingEvent                      // Accumulating an unsolicited event frame
	ReceivingMagicBytes                 // Reading a magic byte report header
	ReceivingMagicDoubleBytes           // Reading a magic double byte report header
	Shutdown
)

var linkStateNames = [...]string{
	"Idle", "WaitAckOrNak", "WaitReportHeader", "ReceivingReport", "ReceivingEvent",
	"ReceivingMagicBytes", "ReceivingMagicDoubleBytes", "Shutdown",
}

func (s LinkState) String() string {
	if int(s) < len(linkStateNames) {
		return linkStateNames[s]
	}
	return fmt.Sprintf("LinkState(%d)", byte(s))
}

func (s LinkState) receivingFrame() bool {
	return s == ReceivingReport || s == ReceivingEvent
}

func (s LinkState) receivingMagic() bool {
	return s == ReceivingMagicBytes || s == ReceivingMagicDoubleBytes
}

// linkStack is a bounded LIFO of link states. The bottom entry is Idle and is never removed.
type linkStack struct {
	states []LinkState
	depth  int
}

func newLinkStack(capacity int) *linkStack {
	s := &linkStack{states: make([]LinkState, capacity)}
	s.reset()
	return s
}

func (s *linkStack) reset() {
	s.states[0] = Idle
	s.depth = 1
}

// push reports false when the stack is full. The caller decides how to recover.
func (s *linkStack) push(state LinkState) bool {
	if s.depth >= len(s.states) {
		return false
	}
	s.states[s.depth] = state
	s.depth++
	return true
}

func (s *linkStack) pop() {
	if s.depth > 1 {
		s.depth--
	}
}

// replace swaps the top entry, used when a wait state turns into a receiving state
func (s *linkStack) replace(state LinkState) {
	if s.depth == 1 {
		s.push(state)
		return
	}
	s.states[s.depth-1] = state
}

// halt collapses the stack onto a single Shutdown entry
func (s *linkStack) halt() {
	s.states[0] = Shutdown
	s.depth = 1
}

func (s *linkStack) current() LinkState {
	return s.states[s.depth-1]
}
