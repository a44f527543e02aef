package host

import "fmt"

// State is a pipeline stage. A pipeline only moves forward; any failure
// moves it to StateAborted.
type State uint8

const (
	StateInit State = iota
	StateKeygenDone
	StateKeySent
	StateProved
	StateDecrypted
	StateVerified
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateInit:       "init",
	StateKeygenDone: "keygen-done",
	StateKeySent:    "key-sent",
	StateProved:     "proved",
	StateDecrypted:  "decrypted",
	StateVerified:   "verified",
	StateDone:       "done",
	StateAborted:    "aborted",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// next returns the successor of s on the success path.
func (s State) next() State {
	if s >= StateDone {
		return s
	}
	return s + 1
}
