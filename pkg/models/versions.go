package models

// Versions carries the three schema version numbers stamped into every
// record of one workflow kind: the workflow record itself, its source
// snapshots, and its events.
type Versions struct {
	Workflow uint32
	Source   uint32
	Event    uint32
}

var kindVersions = map[Kind]Versions{
	KindOutgoingCheque:   {Workflow: 1, Source: 1, Event: 1},
	KindIncomingCheque:   {Workflow: 1, Source: 1, Event: 1},
	KindOutgoingInvoice:  {Workflow: 1, Source: 1, Event: 1},
	KindIncomingInvoice:  {Workflow: 1, Source: 1, Event: 1},
	KindOutgoingVoucher:  {Workflow: 1, Source: 1, Event: 1},
	KindIncomingVoucher:  {Workflow: 1, Source: 1, Event: 1},
	KindOutgoingTransfer: {Workflow: 2, Source: 1, Event: 2},
	KindIncomingTransfer: {Workflow: 2, Source: 1, Event: 2},
	KindInternalTransfer: {Workflow: 2, Source: 1, Event: 2},
	KindOutgoingCash:     {Workflow: 3, Source: 1, Event: 3},
	KindIncomingCash:     {Workflow: 3, Source: 1, Event: 3},
}

// VersionsFor returns the schema versions for one workflow kind. The second
// return is false for unknown kinds.
func VersionsFor(kind Kind) (Versions, bool) {
	v, ok := kindVersions[kind]

	return v, ok
}
