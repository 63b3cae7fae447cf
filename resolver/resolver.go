// Package resolver computes deterministic activation order over a set
// of extension descriptors from their declared dependencies.
package resolver

import (
	"sort"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// visit marks for the depth-first traversal.
const (
	unvisited = iota
	visiting
	visited
)

// ActivationOrder returns the ids of the given descriptors in an order
// where every dependency precedes its dependents. The order is
// deterministic: both the roots and each node's dependencies are walked
// sorted by load order ascending, then id ascending.
//
// Dependencies that point outside the given set do not contribute
// edges; whether they are satisfied is checked at activation time.
// A dependency cycle fails the whole computation with a CycleError
// naming the participants.
func ActivationOrder(descriptors []*entities.Descriptor) ([]values.ExtensionID, error) {
	byID := make(map[values.ExtensionID]*entities.Descriptor, len(descriptors))
	for _, desc := range descriptors {
		byID[desc.ID()] = desc
	}

	roots := make([]*entities.Descriptor, len(descriptors))
	copy(roots, descriptors)
	sortDescriptors(roots)

	marks := make(map[values.ExtensionID]int, len(descriptors))
	order := make([]values.ExtensionID, 0, len(descriptors))
	stack := make([]values.ExtensionID, 0, len(descriptors))

	var walk func(desc *entities.Descriptor) error
	walk = func(desc *entities.Descriptor) error {
		id := desc.ID()
		switch marks[id] {
		case visited:
			return nil
		case visiting:
			return cycleFrom(stack, id)
		}

		marks[id] = visiting
		stack = append(stack, id)

		deps := make([]*entities.Descriptor, 0, len(desc.Dependencies()))
		for _, depID := range desc.Dependencies() {
			if dep, ok := byID[depID]; ok {
				deps = append(deps, dep)
			}
		}
		sortDescriptors(deps)
		for _, dep := range deps {
			if err := walk(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		marks[id] = visited
		order = append(order, id)
		return nil
	}

	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// DependencyCycle walks the transitive dependencies of desc through the
// lookup and returns a CycleError when the walk re-enters a node still
// in progress. Dependencies the lookup cannot supply end their branch;
// a nil return means every reachable path terminates, so an unsatisfied
// dependency is merely missing rather than permanently unsatisfiable.
func DependencyCycle(desc *entities.Descriptor, lookup func(values.ExtensionID) (*entities.Descriptor, bool)) error {
	marks := make(map[values.ExtensionID]int)
	stack := make([]values.ExtensionID, 0)

	var walk func(d *entities.Descriptor) error
	walk = func(d *entities.Descriptor) error {
		id := d.ID()
		switch marks[id] {
		case visited:
			return nil
		case visiting:
			return cycleFrom(stack, id)
		}

		marks[id] = visiting
		stack = append(stack, id)
		for _, depID := range d.Dependencies() {
			dep, ok := lookup(depID)
			if !ok {
				continue
			}
			if err := walk(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[id] = visited
		return nil
	}
	return walk(desc)
}

// MissingDependencies returns the declared dependencies of desc that
// are not satisfied by the given predicate, in declaration order.
func MissingDependencies(desc *entities.Descriptor, satisfied func(values.ExtensionID) bool) []values.ExtensionID {
	var missing []values.ExtensionID
	for _, dep := range desc.Dependencies() {
		if !satisfied(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

func sortDescriptors(descs []*entities.Descriptor) {
	sort.Slice(descs, func(i, j int) bool {
		if descs[i].LoadOrder() != descs[j].LoadOrder() {
			return descs[i].LoadOrder() < descs[j].LoadOrder()
		}
		return descs[i].ID().Less(descs[j].ID())
	})
}

// cycleFrom builds a CycleError from the portion of the traversal stack
// that starts at the revisited node.
func cycleFrom(stack []values.ExtensionID, at values.ExtensionID) error {
	start := 0
	for i, id := range stack {
		if id.Equals(at) {
			start = i
			break
		}
	}
	participants := make([]values.ExtensionID, len(stack)-start)
	copy(participants, stack[start:])
	return &entities.CycleError{Participants: participants}
}
