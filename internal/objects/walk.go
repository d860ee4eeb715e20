package objects

import (
	"github.com/emirpasic/gods/lists/arraylist"

	"github.com/xsgit/xsgit/internal/objstore"
)

// deque is a minimal double-ended queue of OIDs over gods' arraylist,
// giving the push_front/push_back operations the DAG walk needs.
type deque struct{ l *arraylist.List }

func newDeque(seeds []string) *deque {
	d := &deque{l: arraylist.New()}
	for _, s := range seeds {
		d.l.Add(s)
	}
	return d
}

func (d *deque) empty() bool { return d.l.Size() == 0 }

func (d *deque) popFront() string {
	v, _ := d.l.Get(0)
	d.l.Remove(0)
	return v.(string)
}

func (d *deque) pushFront(oid string) { d.l.Insert(0, oid) }
func (d *deque) pushBack(oid string)  { d.l.Add(oid) }

// WalkCommitsAndParents performs a breadth-first traversal of the commit
// DAG starting from seeds, visiting every reachable commit exactly once and
// calling visit(oid, commit) in visitation order. First-parent chains are
// preferred: after popping a commit from the front of the work queue, its
// first parent is pushed back to the front and any additional parents are
// pushed to the back, so the first-parent line is explored before any
// second-parent detours.
func WalkCommitsAndParents(store *objstore.Store, seeds []string, visit func(oid string, c Commit) error) error {
	seen := make(map[string]bool)
	q := newDeque(seeds)

	for !q.empty() {
		oid := q.popFront()
		if seen[oid] {
			continue
		}
		seen[oid] = true

		c, err := GetCommit(store, oid)
		if err != nil {
			return err
		}
		if err := visit(oid, c); err != nil {
			return err
		}

		for i := len(c.Parents) - 1; i >= 1; i-- {
			q.pushBack(c.Parents[i])
		}
		if len(c.Parents) > 0 {
			q.pushFront(c.Parents[0])
		}
	}
	return nil
}

// Ancestors returns the set of commit OIDs reachable from seeds (inclusive
// of the seeds themselves), via WalkCommitsAndParents.
func Ancestors(store *objstore.Store, seeds []string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := WalkCommitsAndParents(store, seeds, func(oid string, _ Commit) error {
		out[oid] = true
		return nil
	})
	return out, err
}

// MergeBase computes the set of ancestors of a, then walks ancestors of b
// in BFS order and returns the first one that also belongs to a's ancestor
// set. Returns "" when a and b share no common ancestor.
func MergeBase(store *objstore.Store, a, b string) (string, error) {
	aSet, err := Ancestors(store, []string{a})
	if err != nil {
		return "", err
	}

	var base string
	err = WalkCommitsAndParents(store, []string{b}, func(oid string, _ Commit) error {
		if base == "" && aSet[oid] {
			base = oid
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return base, nil
}

// IsAncestorOf reports whether maybe appears in the ancestor walk of c.
func IsAncestorOf(store *objstore.Store, c, maybe string) (bool, error) {
	set, err := Ancestors(store, []string{c})
	if err != nil {
		return false, err
	}
	return set[maybe], nil
}
