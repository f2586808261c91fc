package models

// transitions is the closed set of legal status edges. Anything absent is
// illegal; in particular no edge leads out of a terminal status except into
// archived.
var transitions = map[PostStatus][]PostStatus{
	StatusPendingModeration: {
		StatusActive,
		StatusRemovedByMod,
	},
	StatusActive: {
		StatusExpired,
		StatusAutoRemoved,
		StatusRemovedByAuthor,
		StatusRemovedByMod,
	},
	StatusExpired:         {StatusArchived},
	StatusAutoRemoved:     {StatusArchived},
	StatusRemovedByAuthor: {StatusArchived},
	StatusRemovedByMod:    {StatusArchived},
}

// CanTransition reports whether the edge from → to is legal.
func CanTransition(from, to PostStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
