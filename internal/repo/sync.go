package repo

import (
	"fmt"
	"strings"

	"github.com/xsgit/xsgit/internal/objects"
	"github.com/xsgit/xsgit/internal/objstore"
	"github.com/xsgit/xsgit/internal/refstore"
)

// reachableObjects computes the full closure over seeds: every commit
// reached by the DAG walk, plus every tree and blob reachable from each
// commit's root tree. Each OID is returned at most once.
func reachableObjects(store *objstore.Store, seeds []string) (map[string]bool, error) {
	out := make(map[string]bool)

	err := objects.WalkCommitsAndParents(store, seeds, func(oid string, c objects.Commit) error {
		if out[oid] {
			return nil
		}
		out[oid] = true
		return collectTree(store, c.Tree, out)
	})
	return out, err
}

func collectTree(store *objstore.Store, oid string, out map[string]bool) error {
	if out[oid] {
		return nil
	}
	out[oid] = true

	payload, err := store.Get(oid, objstore.KindTree)
	if err != nil {
		return err
	}
	entries, err := objects.DecodeTree(payload)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Kind {
		case objects.EntryTree:
			if err := collectTree(store, e.OID, out); err != nil {
				return err
			}
		case objects.EntryBlob:
			out[e.OID] = true
		}
	}
	return nil
}

// branchTips returns the name (without the refs/heads/ prefix) and OID of
// every branch at remote.
func branchTips(remote *Repository) (map[string]string, error) {
	entries, err := remote.Refs.Iter("refs/heads/", true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[strings.TrimPrefix(e.Name, "refs/heads/")] = e.Value.OID
	}
	return out, nil
}

// copyObject copies one object's raw framed bytes from src to dst,
// skipping it if dst already has it (objects are immutable, so this is
// safe and idempotent).
func copyObject(src, dst *objstore.Store, oid string) error {
	if dst.Exists(oid) {
		return nil
	}
	kind, err := src.Kind(oid)
	if err != nil {
		return err
	}
	payload, err := src.Get(oid, kind)
	if err != nil {
		return err
	}
	_, err = dst.Put(payload, kind)
	return err
}

// Fetch enumerates refs/heads/* at remotePath, copies every object missing
// locally in their combined closure, and mirrors each remote branch into
// refs/remote/<name>.
func (r *Repository) Fetch(remotePath string) error {
	remote, err := Open(remotePath)
	if err != nil {
		return fmt.Errorf("repo: fetch: opening remote %s: %w", remotePath, err)
	}

	tips, err := branchTips(remote)
	if err != nil {
		return err
	}
	seeds := make([]string, 0, len(tips))
	for _, oid := range tips {
		seeds = append(seeds, oid)
	}

	closure, err := reachableObjects(remote.Store, seeds)
	if err != nil {
		return err
	}
	for oid := range closure {
		if err := copyObject(remote.Store, r.Store, oid); err != nil {
			return err
		}
	}

	for name, oid := range tips {
		if err := r.Refs.Update("refs/remote/"+name, refstore.Value{OID: oid}, false); err != nil {
			return err
		}
	}
	return nil
}

// Push reads the local concrete value of refname, rejects the push if the
// remote's corresponding branch exists and is not an ancestor of the local
// commit (non-fast-forward), copies local_closure - remote_closure, and
// advances the remote's refname.
func (r *Repository) Push(remotePath, refname string) error {
	localVal, err := r.Refs.Get("refs/heads/"+refname, true)
	if err != nil {
		return err
	}
	if localVal.IsZero() {
		return fmt.Errorf("repo: push: local branch %q does not exist: %w", refname, ErrNameNotFound)
	}
	localOID := localVal.OID

	remote, err := Open(remotePath)
	if err != nil {
		return fmt.Errorf("repo: push: opening remote %s: %w", remotePath, err)
	}

	remoteVal, err := remote.Refs.Get("refs/heads/"+refname, true)
	if err != nil {
		return err
	}

	if !remoteVal.IsZero() {
		isAncestor, err := objects.IsAncestorOf(r.Store, localOID, remoteVal.OID)
		if err != nil {
			return err
		}
		if !isAncestor {
			return fmt.Errorf("repo: push %s: %w", refname, ErrNonFastForward)
		}
	}

	tips, err := branchTips(remote)
	if err != nil {
		return err
	}
	remoteSeeds := make([]string, 0, len(tips))
	for _, oid := range tips {
		remoteSeeds = append(remoteSeeds, oid)
	}
	remoteClosure, err := reachableObjects(remote.Store, remoteSeeds)
	if err != nil {
		return err
	}
	localClosure, err := reachableObjects(r.Store, []string{localOID})
	if err != nil {
		return err
	}

	for oid := range localClosure {
		if remoteClosure[oid] {
			continue
		}
		if err := copyObject(r.Store, remote.Store, oid); err != nil {
			return err
		}
	}

	return remote.Refs.Update("refs/heads/"+refname, refstore.Value{OID: localOID}, false)
}
