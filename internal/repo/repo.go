// Package repo implements the high-level operations (init, add, commit,
// checkout, branch, tag, log, status, show, reset, merge, merge-base) on
// top of the object store, reference store, index, tree/commit codecs, and
// diff/merge engine.
package repo

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"github.com/xsgit/xsgit/internal/config"
	"github.com/xsgit/xsgit/internal/difftool"
	"github.com/xsgit/xsgit/internal/index"
	"github.com/xsgit/xsgit/internal/objects"
	"github.com/xsgit/xsgit/internal/objstore"
	"github.com/xsgit/xsgit/internal/refstore"
	"github.com/xsgit/xsgit/internal/worktree"
)

// ControlDir is the name of the repository control directory under the
// working directory.
const ControlDir = ".xsgit"

// Sentinel errors, branched on by callers per the error-kind taxonomy:
// corruption, not-found, precondition, I/O, external-tool.
var (
	ErrNotRepository    = errors.New("repo: not a repository")
	ErrAlreadyExists    = errors.New("repo: repository already exists")
	ErrNameNotFound     = errors.New("repo: name does not resolve to any ref or oid")
	ErrNonFastForward   = errors.New("repo: non-fast-forward push rejected")
	ErrNothingToResolve = errors.New("repo: HEAD does not resolve to a commit")
)

// Repository is a single checked-out xsgit repository, scoped to one
// command invocation per the concurrency model (no concurrent writers).
type Repository struct {
	workdir billy.Filesystem
	control billy.Filesystem

	Store  *objstore.Store
	Refs   *refstore.Store
	Config config.Config

	log *logrus.Logger
}

// Open returns a Repository rooted at path, which must already contain a
// ControlDir (use Init to create one).
func Open(path string) (*Repository, error) {
	workdir := osfs.New(path)
	if _, err := workdir.Stat(ControlDir); err != nil {
		return nil, ErrNotRepository
	}
	control, err := workdir.Chroot(ControlDir)
	if err != nil {
		return nil, fmt.Errorf("repo: chroot control dir: %w", err)
	}

	r := &Repository{
		workdir: workdir,
		control: control,
		log:     logrus.StandardLogger(),
	}
	r.Store = objstore.New(control, r.log)
	r.Refs = refstore.New(control)

	cfg, err := config.Load(control)
	if err != nil {
		return nil, err
	}
	r.Config = cfg
	return r, nil
}

// Init creates a new repository at path: the control directory, the
// objects subdirectory, a symbolic HEAD at refs/heads/main (main does not
// yet exist), and a default config.
func Init(path string) (*Repository, error) {
	workdir := osfs.New(path)
	if _, err := workdir.Stat(ControlDir); err == nil {
		return nil, ErrAlreadyExists
	}
	control, err := workdir.Chroot(ControlDir)
	if err != nil {
		return nil, fmt.Errorf("repo: chroot control dir: %w", err)
	}
	if err := control.MkdirAll(objstore.ObjectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("repo: init: %w", err)
	}

	r := &Repository{workdir: workdir, control: control, log: logrus.StandardLogger()}
	r.Store = objstore.New(control, r.log)
	r.Refs = refstore.New(control)

	if err := r.Refs.Update("HEAD", refstore.Value{Symbolic: true, Target: "refs/heads/main"}, false); err != nil {
		return nil, err
	}
	r.Config = config.Default()
	if err := config.Save(control, r.Config); err != nil {
		return nil, err
	}
	return r, nil
}

// Add stages paths: a file is hashed and staged directly; a directory is
// walked and every non-ignored regular file under it is staged.
func (r *Repository) Add(paths []string) error {
	return index.WithIndex(r.control, func(ix *index.Index) error {
		for _, p := range paths {
			if err := r.addPath(ix, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) addPath(ix *index.Index, path string) error {
	info, err := r.workdir.Stat(path)
	if err != nil {
		return fmt.Errorf("repo: add %s: %w", path, err)
	}
	if !info.IsDir() {
		return r.stageFile(ix, path)
	}
	infos, err := r.workdir.ReadDir(path)
	if err != nil {
		return fmt.Errorf("repo: add %s: %w", path, err)
	}
	for _, sub := range infos {
		if sub.Name() == worktree.ControlDir {
			continue
		}
		if err := r.addPath(ix, path+"/"+sub.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) stageFile(ix *index.Index, path string) error {
	f, err := r.workdir.Open(path)
	if err != nil {
		return fmt.Errorf("repo: add %s: %w", path, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("repo: add %s: %w", path, err)
	}
	oid, err := r.Store.Put(content, objstore.KindBlob)
	if err != nil {
		return err
	}
	ix.Set(normalizePath(path), oid)
	return nil
}

// Commit builds a tree from the current index and writes a commit object
// whose parents are HEAD (if it resolves) and MERGE_HEAD (if present,
// consumed and deleted afterward). HEAD is advanced via a dereferencing
// update, so the branch HEAD points at moves, not HEAD itself.
func (r *Repository) Commit(message string) (string, error) {
	ix, err := index.Load(r.control)
	if err != nil {
		return "", err
	}
	treeOID, err := objects.BuildTree(r.Store, ix.Map())
	if err != nil {
		return "", err
	}

	var parents []string
	if headVal, err := r.Refs.Get("HEAD", true); err != nil {
		return "", err
	} else if !headVal.IsZero() {
		parents = append(parents, headVal.OID)
	}

	mergeHeadVal, err := r.Refs.Get("MERGE_HEAD", false)
	if err != nil {
		return "", err
	}
	hadMergeHead := !mergeHeadVal.IsZero()
	if hadMergeHead {
		parents = append(parents, mergeHeadVal.OID)
	}

	commit := objects.Commit{
		Tree:    treeOID,
		Parents: parents,
		Message: stampAuthor(message, r.Config.Author()),
	}
	oid, err := objects.PutCommit(r.Store, commit)
	if err != nil {
		return "", err
	}

	if err := r.Refs.Update("HEAD", refstore.Value{OID: oid}, true); err != nil {
		return "", err
	}
	if hadMergeHead {
		if err := r.Refs.Delete("MERGE_HEAD", false); err != nil {
			return "", err
		}
	}
	return oid, nil
}

// stampAuthor appends an "Author:" trailer to a commit message. The commit
// header stays restricted to "tree"/"parent" per the wire format; the
// author identity rides in the message body instead, as a trailer line.
func stampAuthor(message, author string) string {
	trimmed := strings.TrimRight(message, "\n")
	return trimmed + "\n\nAuthor: " + author + "\n"
}

// ResolveName implements name resolution: "@" -> HEAD; literal name,
// refs/<name>, refs/tags/<name>, refs/heads/<name> in order, returning the
// first existing ref's concrete resolution; otherwise a bare 40-hex OID;
// otherwise ErrNameNotFound.
func (r *Repository) ResolveName(name string) (string, error) {
	if name == "@" {
		name = "HEAD"
	}
	candidates := []string{name, "refs/" + name, "refs/tags/" + name, "refs/heads/" + name}
	for _, c := range candidates {
		v, err := r.Refs.Get(c, true)
		if err != nil {
			return "", err
		}
		if !v.IsZero() && !v.Symbolic {
			return v.OID, nil
		}
	}
	if isHexOID(name) {
		return name, nil
	}
	return "", fmt.Errorf("%q: %w", name, ErrNameNotFound)
}

func isHexOID(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// Checkout resolves name, expands its commit's tree into the index, and
// materializes the working tree. If name is a branch, HEAD is set
// symbolic to refs/heads/<name>; otherwise HEAD is set concrete (detached).
func (r *Repository) Checkout(name string) error {
	oid, err := r.ResolveName(name)
	if err != nil {
		return err
	}
	c, err := objects.GetCommit(r.Store, oid)
	if err != nil {
		return err
	}
	flat, err := objects.ExpandTree(r.Store, c.Tree)
	if err != nil {
		return err
	}

	if err := worktree.Materialize(r.workdir, r.Store, flat); err != nil {
		return err
	}
	if err := index.WithIndex(r.control, func(ix *index.Index) error {
		ix.Replace(flat)
		return nil
	}); err != nil {
		return err
	}

	branchVal, err := r.Refs.Get("refs/heads/"+name, false)
	if err != nil {
		return err
	}
	if !branchVal.IsZero() {
		return r.Refs.Update("HEAD", refstore.Value{Symbolic: true, Target: "refs/heads/" + name}, false)
	}
	return r.Refs.Update("HEAD", refstore.Value{OID: oid}, false)
}

// Reset sets HEAD concrete to oid; the working tree and index are left
// untouched.
func (r *Repository) Reset(oid string) error {
	return r.Refs.Update("HEAD", refstore.Value{OID: oid}, false)
}

// Tag creates refs/tags/<name> concrete at oid.
func (r *Repository) Tag(name, oid string) error {
	return r.Refs.Update("refs/tags/"+name, refstore.Value{OID: oid}, false)
}

// BranchInfo is one entry returned by ListBranches.
type BranchInfo struct {
	Name    string
	OID     string
	Current bool
}

// ListBranches returns every refs/heads/* branch, marking the currently
// checked-out one.
func (r *Repository) ListBranches() ([]BranchInfo, error) {
	entries, err := r.Refs.Iter("refs/heads/", true)
	if err != nil {
		return nil, err
	}
	current, err := r.currentBranchRef()
	if err != nil {
		return nil, err
	}

	out := make([]BranchInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, BranchInfo{
			Name:    strings.TrimPrefix(e.Name, "refs/heads/"),
			OID:     e.Value.OID,
			Current: e.Name == current,
		})
	}
	return out, nil
}

// CreateBranch creates refs/heads/<name> at the commit start resolves to.
func (r *Repository) CreateBranch(name, start string) error {
	oid, err := r.ResolveName(start)
	if err != nil {
		return err
	}
	return r.Refs.Update("refs/heads/"+name, refstore.Value{OID: oid}, false)
}

func (r *Repository) currentBranchRef() (string, error) {
	v, err := r.Refs.Get("HEAD", false)
	if err != nil {
		return "", err
	}
	if v.Symbolic {
		return v.Target, nil
	}
	return "", nil
}

// LogEntry is one commit yielded by Log.
type LogEntry struct {
	OID    string
	Commit objects.Commit
	Refs   []string
}

// Log walks from oid and returns each commit along with the ref names that
// point directly at it.
func (r *Repository) Log(oid string) ([]LogEntry, error) {
	refsByOID, err := r.refsPointingAt()
	if err != nil {
		return nil, err
	}

	var out []LogEntry
	err = objects.WalkCommitsAndParents(r.Store, []string{oid}, func(oid string, c objects.Commit) error {
		out = append(out, LogEntry{OID: oid, Commit: c, Refs: refsByOID[oid]})
		return nil
	})
	return out, err
}

func (r *Repository) refsPointingAt() (map[string][]string, error) {
	entries, err := r.Refs.Iter("", true)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, e := range entries {
		out[e.Value.OID] = append(out[e.Value.OID], e.Name)
	}
	return out, nil
}

// StatusReport is the data behind the status command.
type StatusReport struct {
	Branch    string
	Detached  bool
	Merging   bool
	ToCommit  []difftool.PathRow
	NotStaged []difftool.PathRow
}

// Status compares the HEAD tree against the index ("to be committed") and
// the index against the working tree ("not staged").
func (r *Repository) Status() (StatusReport, error) {
	var report StatusReport

	headVal, err := r.Refs.Get("HEAD", false)
	if err != nil {
		return report, err
	}
	if headVal.Symbolic {
		report.Branch = strings.TrimPrefix(headVal.Target, "refs/heads/")
	} else {
		report.Detached = true
	}

	mergeHead, err := r.Refs.Get("MERGE_HEAD", false)
	if err != nil {
		return report, err
	}
	report.Merging = !mergeHead.IsZero()

	headOID, err := r.Refs.Get("HEAD", true)
	if err != nil {
		return report, err
	}
	var headTree map[string]string
	if !headOID.IsZero() {
		c, err := objects.GetCommit(r.Store, headOID.OID)
		if err != nil {
			return report, err
		}
		headTree, err = objects.ExpandTree(r.Store, c.Tree)
		if err != nil {
			return report, err
		}
	}

	ix, err := index.Load(r.control)
	if err != nil {
		return report, err
	}
	staged := ix.Map()

	for _, row := range difftool.CompareTrees(headTree, staged) {
		if difftool.Classify(row) != difftool.Unchanged {
			report.ToCommit = append(report.ToCommit, row)
		}
	}

	working, err := worktree.Scan(r.workdir, r.Store)
	if err != nil {
		return report, err
	}
	for _, row := range difftool.CompareTrees(staged, working) {
		if difftool.Classify(row) != difftool.Unchanged {
			report.NotStaged = append(report.NotStaged, row)
		}
	}

	return report, nil
}

// Diff renders a unified text diff. With cached set, it compares HEAD's
// tree against the index ("staged" changes); otherwise it compares the
// index against the working tree ("unstaged" changes).
func (r *Repository) Diff(cached bool) ([]byte, error) {
	ix, err := index.Load(r.control)
	if err != nil {
		return nil, err
	}
	staged := ix.Map()

	var old, new map[string]string
	if cached {
		headOID, err := r.Refs.Get("HEAD", true)
		if err != nil {
			return nil, err
		}
		if !headOID.IsZero() {
			c, err := objects.GetCommit(r.Store, headOID.OID)
			if err != nil {
				return nil, err
			}
			old, err = objects.ExpandTree(r.Store, c.Tree)
			if err != nil {
				return nil, err
			}
		}
		new = staged
	} else {
		old = staged
		working, err := worktree.Scan(r.workdir, r.Store)
		if err != nil {
			return nil, err
		}
		new = working
	}

	return difftool.TreeDiff(old, new, func(oid string) ([]byte, error) {
		return r.Store.Get(oid, objstore.KindBlob)
	})
}

// MergeResult reports what Merge did.
type MergeResult struct {
	FastForward bool
	Clean       bool
	NewHead     string
}

// Merge merges other into HEAD. If the merge base equals HEAD, this is a
// fast-forward: the working tree/index become other's, and HEAD advances.
// Otherwise MERGE_HEAD is set to other's commit and a three-way tree merge
// materializes the result, leaving the user to resolve conflicts and
// commit.
func (r *Repository) Merge(other string) (MergeResult, error) {
	otherOID, err := r.ResolveName(other)
	if err != nil {
		return MergeResult{}, err
	}
	headVal, err := r.Refs.Get("HEAD", true)
	if err != nil {
		return MergeResult{}, err
	}
	if headVal.IsZero() {
		return MergeResult{}, ErrNothingToResolve
	}
	head := headVal.OID

	base, err := objects.MergeBase(r.Store, head, otherOID)
	if err != nil {
		return MergeResult{}, err
	}

	if base == head {
		// Fast-forward: materialize other's tree directly rather than
		// going through Checkout, which would leave HEAD detached;
		// the dereferencing update below is what actually advances the
		// current branch tip.
		otherCommit, err := objects.GetCommit(r.Store, otherOID)
		if err != nil {
			return MergeResult{}, err
		}
		flat, err := objects.ExpandTree(r.Store, otherCommit.Tree)
		if err != nil {
			return MergeResult{}, err
		}
		if err := worktree.Materialize(r.workdir, r.Store, flat); err != nil {
			return MergeResult{}, err
		}
		if err := index.WithIndex(r.control, func(ix *index.Index) error {
			ix.Replace(flat)
			return nil
		}); err != nil {
			return MergeResult{}, err
		}
		if err := r.Refs.Update("HEAD", refstore.Value{OID: otherOID}, true); err != nil {
			return MergeResult{}, err
		}
		return MergeResult{FastForward: true, Clean: true, NewHead: otherOID}, nil
	}

	if err := r.Refs.Update("MERGE_HEAD", refstore.Value{OID: otherOID}, false); err != nil {
		return MergeResult{}, err
	}

	baseCommit, err := objects.GetCommit(r.Store, base)
	if err != nil {
		return MergeResult{}, err
	}
	headCommit, err := objects.GetCommit(r.Store, head)
	if err != nil {
		return MergeResult{}, err
	}
	otherCommit, err := objects.GetCommit(r.Store, otherOID)
	if err != nil {
		return MergeResult{}, err
	}

	baseTree, err := objects.ExpandTree(r.Store, baseCommit.Tree)
	if err != nil {
		return MergeResult{}, err
	}
	ourTree, err := objects.ExpandTree(r.Store, headCommit.Tree)
	if err != nil {
		return MergeResult{}, err
	}
	theirTree, err := objects.ExpandTree(r.Store, otherCommit.Tree)
	if err != nil {
		return MergeResult{}, err
	}

	merged, clean, err := r.mergeTrees(baseTree, ourTree, theirTree)
	if err != nil {
		return MergeResult{}, err
	}

	if err := worktree.Materialize(r.workdir, r.Store, merged); err != nil {
		return MergeResult{}, err
	}
	if err := index.WithIndex(r.control, func(ix *index.Index) error {
		ix.Replace(merged)
		return nil
	}); err != nil {
		return MergeResult{}, err
	}

	return MergeResult{FastForward: false, Clean: clean, NewHead: head}, nil
}

// mergeTrees implements the three-way tree merge of §4.7: for each path
// call merge_blob(base, ours, theirs), store the result, and record the new
// OID. Paths present on only one side are carried through unchanged.
func (r *Repository) mergeTrees(base, ours, theirs map[string]string) (map[string]string, bool, error) {
	rows := difftool.CompareTrees(base, ours, theirs)
	out := make(map[string]string, len(rows))
	clean := true

	for _, row := range rows {
		baseOID, ourOID, theirOID := row.OIDs[0], row.OIDs[1], row.OIDs[2]

		if ourOID == theirOID {
			if ourOID != "" {
				out[row.Path] = ourOID
			}
			continue
		}
		if baseOID == ourOID && theirOID != "" {
			out[row.Path] = theirOID
			continue
		}
		if baseOID == theirOID && ourOID != "" {
			out[row.Path] = ourOID
			continue
		}

		var baseContent, ourContent, theirContent []byte
		var err error
		if baseOID != "" {
			if baseContent, err = r.Store.Get(baseOID, objstore.KindBlob); err != nil {
				return nil, false, err
			}
		}
		if ourOID != "" {
			if ourContent, err = r.Store.Get(ourOID, objstore.KindBlob); err != nil {
				return nil, false, err
			}
		}
		if theirOID != "" {
			if theirContent, err = r.Store.Get(theirOID, objstore.KindBlob); err != nil {
				return nil, false, err
			}
		}

		mergedBytes, mergeClean := difftool.TextMerge3(baseContent, ourContent, theirContent)
		if !mergeClean {
			clean = false
		}
		oid, err := r.Store.Put(mergedBytes, objstore.KindBlob)
		if err != nil {
			return nil, false, err
		}
		out[row.Path] = oid
	}
	return out, clean, nil
}

// MergeBase returns the merge base of a and b, or "" if they share no
// ancestor.
func (r *Repository) MergeBase(a, b string) (string, error) {
	return objects.MergeBase(r.Store, a, b)
}

// IsAncestorOf reports whether maybe is an ancestor of c.
func (r *Repository) IsAncestorOf(c, maybe string) (bool, error) {
	return objects.IsAncestorOf(r.Store, c, maybe)
}

// Show returns the commit at oid and its tree-diff against its first
// parent, or against the empty tree when oid has no parent.
func (r *Repository) Show(oid string) (objects.Commit, []byte, error) {
	c, err := objects.GetCommit(r.Store, oid)
	if err != nil {
		return objects.Commit{}, nil, err
	}

	parentTree := map[string]string{}
	if len(c.Parents) > 0 {
		parentCommit, err := objects.GetCommit(r.Store, c.Parents[0])
		if err != nil {
			return objects.Commit{}, nil, err
		}
		parentTree, err = objects.ExpandTree(r.Store, parentCommit.Tree)
		if err != nil {
			return objects.Commit{}, nil, err
		}
	}
	tree, err := objects.ExpandTree(r.Store, c.Tree)
	if err != nil {
		return objects.Commit{}, nil, err
	}

	diff, err := difftool.TreeDiff(parentTree, tree, func(oid string) ([]byte, error) {
		return r.Store.Get(oid, objstore.KindBlob)
	})
	return c, diff, err
}

// ScanWorkdir hashes every tracked-candidate file currently on disk into
// blobs and returns the resulting path -> oid map, independent of the
// index. Used by write-tree, which snapshots the working tree directly.
func (r *Repository) ScanWorkdir() (map[string]string, error) {
	return worktree.Scan(r.workdir, r.Store)
}

func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}

