// Command xsgit is the command-line front end over internal/repo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/xsgit/xsgit/internal/graphviz"
	"github.com/xsgit/xsgit/internal/objects"
	"github.com/xsgit/xsgit/internal/objstore"
	"github.com/xsgit/xsgit/internal/repo"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "xsgit v%s: a minimal content-addressed version control system\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: xsgit <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  init\n  hash-object <file>\n  cat-file <oid>\n  write-tree\n  read-tree <oid>\n")
		fmt.Fprintf(os.Stderr, "  add <path>...\n  commit -m <msg>\n  log [<oid>]\n  show [<oid>]\n")
		fmt.Fprintf(os.Stderr, "  diff [--cached]\n  checkout <name>\n  tag <name> [<oid>]\n")
		fmt.Fprintf(os.Stderr, "  branch [<name> [<start>]]\n  status\n  reset <oid>\n  merge <oid>\n")
		fmt.Fprintf(os.Stderr, "  merge-base <a> <b>\n  fetch <remote-path>\n  push <remote-path> <branch>\n  k\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fail("getwd: %v", err)
	}

	args := flag.Args()
	cmd, rest := args[0], args[1:]

	var cmdErr error
	switch cmd {
	case "init":
		cmdErr = initCmd(cwd)
	case "hash-object":
		cmdErr = hashObjectCmd(cwd, rest)
	case "cat-file":
		cmdErr = catFileCmd(cwd, rest)
	case "write-tree":
		cmdErr = writeTreeCmd(cwd)
	case "read-tree":
		cmdErr = readTreeCmd(cwd, rest)
	case "add":
		cmdErr = addCmd(cwd, rest)
	case "commit":
		cmdErr = commitCmd(cwd, rest)
	case "log":
		cmdErr = logCmd(cwd, rest)
	case "show":
		cmdErr = showCmd(cwd, rest)
	case "diff":
		cmdErr = diffCmd(cwd, rest)
	case "checkout":
		cmdErr = checkoutCmd(cwd, rest)
	case "tag":
		cmdErr = tagCmd(cwd, rest)
	case "branch":
		cmdErr = branchCmd(cwd, rest)
	case "status":
		cmdErr = statusCmd(cwd)
	case "reset":
		cmdErr = resetCmd(cwd, rest)
	case "merge":
		cmdErr = mergeCmd(cwd, rest)
	case "merge-base":
		cmdErr = mergeBaseCmd(cwd, rest)
	case "fetch":
		cmdErr = fetchCmd(cwd, rest)
	case "push":
		cmdErr = pushCmd(cwd, rest)
	case "k":
		cmdErr = graphCmd(cwd)
	default:
		fmt.Fprintf(os.Stderr, "xsgit: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if cmdErr != nil {
		fail("%v", cmdErr)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "xsgit: "+format+"\n", args...)
	os.Exit(1)
}

func openRepo(cwd string) (*repo.Repository, error) {
	return repo.Open(cwd)
}

func initCmd(cwd string) error {
	if _, err := repo.Init(cwd); err != nil {
		return err
	}
	fmt.Printf("Initialized empty xsgit repository in %s/.xsgit\n", cwd)
	return nil
}

func hashObjectCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hash-object <file>")
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	oid, err := r.Store.Put(content, objstore.KindBlob)
	if err != nil {
		return err
	}
	fmt.Println(oid)
	return nil
}

func catFileCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat-file <oid>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	kind, err := r.Store.Kind(args[0])
	if err != nil {
		return err
	}
	payload, err := r.Store.Get(args[0], kind)
	if err != nil {
		return err
	}
	os.Stdout.Write(payload)
	return nil
}

func writeTreeCmd(cwd string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	flat, err := r.ScanWorkdir()
	if err != nil {
		return err
	}
	oid, err := objects.BuildTree(r.Store, flat)
	if err != nil {
		return err
	}
	fmt.Println(oid)
	return nil
}

func readTreeCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read-tree <oid>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	return r.Checkout(args[0])
}

func addCmd(cwd string, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("usage: add <path>...")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	return r.Add(paths)
}

func commitCmd(cwd string, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("commit message is required (use -m \"message\")")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	oid, err := r.Commit(*message)
	if err != nil {
		return err
	}
	fmt.Println(oid)
	return nil
}

func logCmd(cwd string, args []string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	start := "@"
	if len(args) > 0 {
		start = args[0]
	}
	oid, err := r.ResolveName(start)
	if err != nil {
		return err
	}
	entries, err := r.Log(oid)
	if err != nil {
		return err
	}
	for _, e := range entries {
		printCommit(e.OID, e.Commit, e.Refs)
	}
	return nil
}

func printCommit(oid string, c objects.Commit, refs []string) {
	label := ""
	if len(refs) > 0 {
		label = fmt.Sprintf(" (%v)", refs)
	}
	fmt.Printf("commit %s%s\n", oid, label)
	fmt.Printf("\n    %s\n\n", c.Message)
}

func showCmd(cwd string, args []string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	name := "@"
	if len(args) > 0 {
		name = args[0]
	}
	oid, err := r.ResolveName(name)
	if err != nil {
		return err
	}
	c, diff, err := r.Show(oid)
	if err != nil {
		return err
	}
	printCommit(oid, c, nil)
	os.Stdout.Write(diff)
	return nil
}

// diffCmd diffs the index against the working tree, or HEAD against the
// index with --cached. It does not take a commit to diff against; positional
// arguments are ignored.
func diffCmd(cwd string, args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	cached := fs.Bool("cached", false, "diff the index against HEAD instead of the working tree against the index")
	fs.Parse(args)

	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	out, err := r.Diff(*cached)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

func checkoutCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: checkout <name>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	return r.Checkout(args[0])
}

func tagCmd(cwd string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tag <name> [<oid>]")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	oid := "@"
	if len(args) > 1 {
		oid = args[1]
	}
	resolved, err := r.ResolveName(oid)
	if err != nil {
		return err
	}
	return r.Tag(args[0], resolved)
}

func branchCmd(cwd string, args []string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		branches, err := r.ListBranches()
		if err != nil {
			return err
		}
		for _, b := range branches {
			marker := " "
			if b.Current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, b.Name)
		}
		return nil
	}
	start := "@"
	if len(args) > 1 {
		start = args[1]
	}
	return r.CreateBranch(args[0], start)
}

func statusCmd(cwd string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	report, err := r.Status()
	if err != nil {
		return err
	}
	if report.Detached {
		fmt.Println("HEAD detached")
	} else {
		fmt.Printf("On branch %s\n", report.Branch)
	}
	if report.Merging {
		fmt.Println("You have unmerged paths (MERGE_HEAD set).")
	}
	if len(report.ToCommit) > 0 {
		fmt.Println("\nChanges to be committed:")
		for _, row := range report.ToCommit {
			fmt.Printf("  %s\n", row.Path)
		}
	}
	if len(report.NotStaged) > 0 {
		fmt.Println("\nChanges not staged for commit:")
		for _, row := range report.NotStaged {
			fmt.Printf("  %s\n", row.Path)
		}
	}
	return nil
}

func resetCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: reset <oid>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	oid, err := r.ResolveName(args[0])
	if err != nil {
		return err
	}
	return r.Reset(oid)
}

func mergeCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: merge <oid>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	result, err := r.Merge(args[0])
	if err != nil {
		return err
	}
	if result.FastForward {
		fmt.Printf("Fast-forward to %s\n", result.NewHead)
		return nil
	}
	if !result.Clean {
		fmt.Println("Merge produced conflicts; resolve and commit.")
		return nil
	}
	fmt.Println("Merge completed; commit to record it.")
	return nil
}

func mergeBaseCmd(cwd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: merge-base <a> <b>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	a, err := r.ResolveName(args[0])
	if err != nil {
		return err
	}
	b, err := r.ResolveName(args[1])
	if err != nil {
		return err
	}
	base, err := r.MergeBase(a, b)
	if err != nil {
		return err
	}
	fmt.Println(base)
	return nil
}

func fetchCmd(cwd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fetch <remote-path>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	return r.Fetch(args[0])
}

func pushCmd(cwd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: push <remote-path> <branch>")
	}
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	return r.Push(args[0], args[1])
}

func graphCmd(cwd string) error {
	r, err := openRepo(cwd)
	if err != nil {
		return err
	}
	head, err := r.ResolveName("@")
	if err != nil {
		return err
	}
	entries, err := r.Log(head)
	if err != nil {
		return err
	}
	edges := make(map[string][]string, len(entries))
	refs := make(map[string][]string, len(entries))
	for _, e := range entries {
		edges[e.OID] = e.Commit.Parents
		refs[e.OID] = e.Refs
	}
	dot := graphviz.DotSource(edges, refs)
	svg, err := graphviz.Render(context.Background(), dot)
	if err != nil {
		os.Stdout.Write(dot)
		return nil
	}
	os.Stdout.Write(svg)
	return nil
}

