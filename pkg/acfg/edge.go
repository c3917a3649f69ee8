package acfg

// Edge is an outgoing arc from one Node to another (spec.md §3). CaseValue
// is -1 for a non-switch edge, or the 0..255 case selector for a switch
// arm. Node is nil between being recorded as a deferred label reference
// and being resolved by finishAppending.
type Edge struct {
	Node      *Node
	CaseValue int32
}

const noCase int32 = -1
