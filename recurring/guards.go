package recurring

// Guards are pure functions that evaluate status preconditions without side
// effects. The store consults them before every state-changing operation.
//
//	active ──pause──▶ paused ──resume──▶ active
//	   │                 │
//	   └────cancel──▶ cancelled ◀──cancel┘   (terminal)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Err converts a refused guard into a TransitionError.
func (r GuardResult) Err(id TemplateID, from Status, op string) error {
	if r.Allowed {
		return nil
	}
	return &TransitionError{TemplateID: id, From: from, Operation: op, Reason: r.Reason}
}

func allowed() GuardResult { return GuardResult{Allowed: true} }

func refused(reason string) GuardResult { return GuardResult{Reason: reason} }

// CanPause: active or paused (no-op) templates may be paused.
func CanPause(from Status) GuardResult {
	if from == StatusCancelled {
		return refused("cancelled templates cannot be paused")
	}
	return allowed()
}

// CanResume: only paused templates resume.
func CanResume(from Status) GuardResult {
	switch from {
	case StatusPaused:
		return allowed()
	case StatusCancelled:
		return refused("cancelled templates cannot be resumed")
	default:
		return refused("only paused templates can be resumed")
	}
}

// CanCancel: anything but an already-cancelled template.
func CanCancel(from Status) GuardResult {
	if from == StatusCancelled {
		return refused("template is already cancelled")
	}
	return allowed()
}

func CanChangeInterval(from Status) GuardResult {
	if from == StatusCancelled {
		return refused("cancelled templates cannot be rescheduled")
	}
	return allowed()
}

func CanEdit(from Status) GuardResult {
	if from == StatusCancelled {
		return refused("cancelled templates are read-only")
	}
	return allowed()
}

// CanAdvance: the scheduler only advances active templates.
func CanAdvance(from Status) GuardResult {
	if from != StatusActive {
		return refused("only active templates are executed")
	}
	return allowed()
}
