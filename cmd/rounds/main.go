package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"eventengine.ai/internal/engine/driver"
	persistlog "eventengine.ai/internal/persistence/log"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		kind    = flag.String("kind", "", "only rounds of this event kind (optional)")
		asJSON  = flag.Bool("json", false, "print each matching round as a JSON line")
	)
	flag.Parse()

	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "rounds"), "rounds")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list rounds:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no round files found in", filepath.Join(*dataDir, "rounds"))
		os.Exit(1)
	}

	sum := newSummary()
	enc := json.NewEncoder(os.Stdout)
	for _, path := range files {
		err := persistlog.ReadRounds(path, func(rec driver.RoundRecord) error {
			if *kind != "" && rec.Kind != *kind {
				return nil
			}
			sum.add(rec)
			if *asJSON {
				return enc.Encode(rec)
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read rounds:", err)
			os.Exit(1)
		}
	}
	if !*asJSON {
		sum.print(os.Stdout)
	}
}

type kindStats struct {
	rounds       int
	outcomes     map[string]int
	participants int
	faults       int
	votes        int
}

type summary struct {
	total  int
	byKind map[string]*kindStats
}

func newSummary() *summary { return &summary{byKind: map[string]*kindStats{}} }

func (s *summary) add(rec driver.RoundRecord) {
	s.total++
	k := rec.Kind
	if k == "" {
		k = "-"
	}
	ks := s.byKind[k]
	if ks == nil {
		ks = &kindStats{outcomes: map[string]int{}}
		s.byKind[k] = ks
	}
	ks.rounds++
	ks.outcomes[rec.Outcome]++
	ks.participants += rec.Participants
	ks.faults += rec.Faults
	for _, n := range rec.Votes {
		ks.votes += n
	}
}

func (s *summary) print(w io.Writer) {
	kinds := make([]string, 0, len(s.byKind))
	for k := range s.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintf(w, "rounds=%d kinds=%d\n", s.total, len(kinds))
	for _, k := range kinds {
		ks := s.byKind[k]
		avg := 0.0
		if ks.rounds > 0 {
			avg = float64(ks.participants) / float64(ks.rounds)
		}
		fmt.Fprintf(w, "%-8s rounds=%d completed=%d finished=%d cancelled=%d avg_participants=%.1f votes=%d faults=%d\n",
			k, ks.rounds,
			ks.outcomes[driver.OutcomeCompleted], ks.outcomes[driver.OutcomeFinished], ks.outcomes[driver.OutcomeCancelled],
			avg, ks.votes, ks.faults)
	}
}
