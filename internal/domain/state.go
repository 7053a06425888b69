package domain

// RunState is the orchestration state of a single publish run.
type RunState string

const (
	RunStateInit            RunState = "init"
	RunStateBuilding        RunState = "building"
	RunStateAssembling      RunState = "assembling"
	RunStateDescriptorReady RunState = "descriptor_ready"
	RunStatePublishing      RunState = "publishing"
	RunStateDone            RunState = "done"
	RunStateAborted         RunState = "aborted"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}

// CanTransitionRunState enforces the forward-only run state machine. Aborted is only
// reachable from the build and assembly stages.
func CanTransitionRunState(current, next RunState) bool {
	switch current {
	case RunStateInit:
		return next == RunStateBuilding
	case RunStateBuilding:
		return next == RunStateAssembling || next == RunStateAborted
	case RunStateAssembling:
		return next == RunStateDescriptorReady || next == RunStateAborted
	case RunStateDescriptorReady:
		return next == RunStatePublishing
	case RunStatePublishing:
		return next == RunStateDone
	default:
		return false
	}
}

// EndpointState is the publish state of one endpoint within a run.
type EndpointState string

const (
	EndpointPending    EndpointState = "pending"
	EndpointPublishing EndpointState = "publishing"
	EndpointPublished  EndpointState = "published"
	EndpointFailed     EndpointState = "failed"
)

// IsTerminal reports whether the endpoint reached published or failed.
func (s EndpointState) IsTerminal() bool {
	return s == EndpointPublished || s == EndpointFailed
}

// CanTransitionEndpointState allows pending -> publishing -> published|failed, and a
// direct pending -> failed when the endpoint cannot be attempted at all.
func CanTransitionEndpointState(current, next EndpointState) bool {
	switch current {
	case EndpointPending:
		return next == EndpointPublishing || next == EndpointFailed
	case EndpointPublishing:
		return next == EndpointPublished || next == EndpointFailed
	default:
		return false
	}
}
