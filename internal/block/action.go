package block

// Action is the unit of commit against a block cluster: an actionId
// proposing transforms over one or more blocks, all advancing to the
// same new revision.
type Action struct {
	ActionId   ActionId   `json:"actionId"`
	Rev        Revision   `json:"rev"`
	Transforms Transforms `json:"transforms"`
}

// RevisionEntry pairs a revision with the action that produced it,
// the canonical index entry described in §3 ("(blockId, rev) →
// actionId").
type RevisionEntry struct {
	ActionId ActionId `json:"actionId"`
	Rev      Revision `json:"rev"`
}

// MissingAction describes a committed action a caller's pend/commit
// request did not know about, returned so the caller can replay it
// and retry (§4.4, §7 MissingCommitted).
type MissingAction struct {
	ActionId   ActionId   `json:"actionId"`
	Rev        Revision   `json:"rev"`
	Transforms Transforms `json:"transforms"`
}

// PendingConflict names a block id and the actionId of an action
// pending against it, optionally enriched with that action's
// transform (policy 'r').
type PendingConflict struct {
	BlockId   Id         `json:"blockId"`
	ActionId  ActionId   `json:"actionId"`
	Transform *Transform `json:"transform,omitempty"`
}
