package whatsapp

// Admission bounds the number of concurrently initiating connections so
// bulk connect operations do not overwhelm the remote store or the client
// library. Already-active sessions do not hold a slot.
type Admission struct {
	slots chan struct{}
}

func NewAdmission(max int) *Admission {
	if max < 1 {
		max = 1
	}
	return &Admission{slots: make(chan struct{}, max)}
}

// TryAdmit claims an initiation slot without blocking. Callers that are
// refused should report the number as queued.
func (a *Admission) TryAdmit() bool {
	select {
	case a.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot once the initiation attempt finishes, whether it
// succeeded or failed.
func (a *Admission) Release() {
	select {
	case <-a.slots:
	default:
	}
}

// InFlight returns the number of currently admitted initiations.
func (a *Admission) InFlight() int {
	return len(a.slots)
}
