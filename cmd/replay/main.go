// Command replay re-runs recorded matches through the engine and checks every tick's digest.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/talgya/gold-arena/internal/replay"
)

func main() {
	var (
		file = flag.String("file", "", "path to a match-*.jsonl.zst recording")
		dir  = flag.String("dir", "", "verify every recording in this directory")
	)
	flag.Parse()

	var paths []string
	switch {
	case *file != "":
		paths = []string{*file}
	case *dir != "":
		matches, err := filepath.Glob(filepath.Join(*dir, "match-*.jsonl.zst"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "list recordings:", err)
			os.Exit(1)
		}
		sort.Strings(matches)
		paths = matches
	default:
		fmt.Fprintln(os.Stderr, "missing -file or -dir")
		os.Exit(2)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no recordings found in", *dir)
		os.Exit(1)
	}

	failed := 0
	for _, path := range paths {
		res, err := replay.VerifyFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			continue
		}
		winner := "-"
		if res.Final.Winner != nil {
			winner = res.Final.Winner.String()
		}
		fmt.Printf("%s: ok match=%s ticks=%d status=%s winner=%s scores=%v\n",
			filepath.Base(path), res.MatchID, res.Ticks, res.Final.Status, winner, res.Final.Scores)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d recordings failed\n", failed, len(paths))
		os.Exit(1)
	}
}
