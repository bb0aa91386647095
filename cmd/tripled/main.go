// Command tripled is a small CLI over the embedded triple store. It loads
// datasets in an N-Triples-like line format and answers pattern queries
// through the same admission-controlled pipeline a host application would
// use.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripled-io/tripled/pkg/breaker"
	"github.com/tripled-io/tripled/pkg/exec"
	"github.com/tripled-io/tripled/pkg/ratelimit"
	"github.com/tripled-io/tripled/pkg/rdf"
	"github.com/tripled-io/tripled/pkg/store"
)

var (
	flagConfig  string
	flagData    string
	flagVerbose bool

	flagUser    string
	flagComplex bool
	flagCost    float64
)

func main() {
	root := &cobra.Command{
		Use:   "tripled",
		Short: "Embedded triple store with pattern queries",
		Long: `tripled loads RDF-style triples from a line-oriented file and answers
pattern queries over them. Queries pass through per-user rate limiting
and a circuit breaker before reaching the store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVarP(&flagData, "data", "d", "", "triple data file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	queryCmd := &cobra.Command{
		Use:   "query <pattern>",
		Short: "Match a pattern against the dataset",
		Long: `Match a three-term pattern against the loaded dataset. Each term is
either <iri>, a "literal" (optionally @lang or ^^<datatype>), or * for
an unbound position.

  tripled query -d data.nt '* <http://example.org/knows> *'`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}
	queryCmd.Flags().StringVarP(&flagUser, "user", "u", "", "user identity for rate limiting")
	queryCmd.Flags().BoolVar(&flagComplex, "complex", false, "count against the complex-query budget")
	queryCmd.Flags().Float64Var(&flagCost, "cost", 0, "query cost estimate (0 = default)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Load the dataset and print store statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Parse the dataset and report syntax errors",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	root.AddCommand(queryCmd, statsCmd, checkCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

// buildExecutor assembles the store pipeline from the config file and
// loads the dataset into it.
func buildExecutor() (*exec.Executor, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		flagVerbose = true
	}

	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.storeOptions())
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(cfg.limiterConfig())
	if err != nil {
		return nil, err
	}
	br := breaker.New(cfg.breakerConfig())

	ex := exec.New(st, limiter, br, log)

	triples, err := readDataset(flagData)
	if err != nil {
		return nil, err
	}
	ex.Load(triples)
	return ex, nil
}

// readDataset parses every triple line in the file at path. An empty path
// yields an empty dataset.
func readDataset(path string) ([]rdf.Triple, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var triples []rdf.Triple
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		t, ok, err := parseTripleLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if ok {
			triples = append(triples, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return triples, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	pattern, err := parsePattern(args[0])
	if err != nil {
		return err
	}

	ex, err := buildExecutor()
	if err != nil {
		return err
	}

	matches, decision, err := ex.Execute(flagUser, pattern, exec.QueryOptions{
		Complex: flagComplex,
		Cost:    flagCost,
	})
	if err != nil {
		return err
	}
	if !decision.Allowed {
		fmt.Fprintf(cmd.ErrOrStderr(), "rejected: retry after %dms (circuit open: %v)\n",
			decision.RetryAfterMs, decision.CircuitOpen)
		os.Exit(2)
	}

	for _, t := range matches {
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d match(es), %d request(s) remaining\n",
		len(matches), decision.RemainingRequests)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	ex, err := buildExecutor()
	if err != nil {
		return err
	}

	st := ex.StoreStats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "triples:        %d\n", st.Triples)
	fmt.Fprintf(out, "subjects:       %d\n", st.SubjectKeys)
	fmt.Fprintf(out, "predicates:     %d\n", st.PredicateKeys)
	fmt.Fprintf(out, "objects:        %d\n", st.ObjectKeys)
	fmt.Fprintf(out, "cache capacity: %d\n", st.ResultCache.Capacity)
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if flagData == "" {
		return fmt.Errorf("check requires --data")
	}
	triples, err := readDataset(flagData)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d triple(s)\n", len(triples))
	return nil
}
