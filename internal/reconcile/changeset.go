package reconcile

import "github.com/desertthunder/collectarr/internal/services"

// MutationKind identifies one kind of server mutation.
type MutationKind string

const (
	MutationCreate        MutationKind = "create-collection"
	MutationAddMembers    MutationKind = "add-members"
	MutationRemoveMembers MutationKind = "remove-members"
	MutationSetImage      MutationKind = "set-image"
	MutationSetMetadata   MutationKind = "set-metadata"
	MutationSetVisibility MutationKind = "set-visibility"
	MutationDelete        MutationKind = "delete-collection"
)

// Mutation is one atomic server change. Mutations are independent: a failure
// applying one never rolls back or blocks the others.
type Mutation struct {
	Kind       MutationKind
	Collection string
	ItemIDs    []string // add-members / remove-members payload
	ImagePath  string
	Metadata   services.CollectionMetadata
	Visible    bool
}

// ChangeSet is the ordered list of mutations computed for one collection
// spec in one run. It is the unit that dry-run intercepts.
type ChangeSet struct {
	Collection string
	Mutations  []Mutation
}

// Empty reports whether the change set contains no mutations.
func (c *ChangeSet) Empty() bool {
	return len(c.Mutations) == 0
}

// Counts returns the number of mutations per kind, with item-level counts
// for membership mutations.
func (c *ChangeSet) Counts() map[MutationKind]int {
	counts := make(map[MutationKind]int)
	for _, m := range c.Mutations {
		switch m.Kind {
		case MutationAddMembers, MutationRemoveMembers:
			counts[m.Kind] += len(m.ItemIDs)
		default:
			counts[m.Kind]++
		}
	}
	return counts
}

func (c *ChangeSet) add(m Mutation) {
	m.Collection = c.Collection
	c.Mutations = append(c.Mutations, m)
}
