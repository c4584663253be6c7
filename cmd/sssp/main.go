// Command sssp runs delta-stepping single-source shortest paths over a
// loaded property graph and writes per-node distances to an output file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KatanaGraph/katana-sub004/internal/algo"
	"github.com/KatanaGraph/katana-sub004/internal/loader"
	"github.com/KatanaGraph/katana-sub004/internal/manager"
	"github.com/KatanaGraph/katana-sub004/internal/memsup"
	"github.com/KatanaGraph/katana-sub004/internal/threadpool"
	"github.com/KatanaGraph/katana-sub004/pkg/config"
	"github.com/KatanaGraph/katana-sub004/pkg/logger"
	"github.com/KatanaGraph/katana-sub004/pkg/memprobe"
	"github.com/KatanaGraph/katana-sub004/pkg/tracer"
)

var (
	inputURI   string
	sourceNode uint32
	threads    int
	delta      int64
	outputPath string
	configPath string
	ledgerPath string
)

var rootCmd = &cobra.Command{
	Use:   "sssp",
	Short: "Run delta-stepping single-source shortest paths over a loaded property graph",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&inputURI, "input", "i", "", "Property graph source URI (cos://... or shard://...)")
	rootCmd.Flags().Uint32VarP(&sourceNode, "source", "s", 0, "Source node id")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Worker thread count (0 = runtime default)")
	rootCmd.Flags().Int64Var(&delta, "delta", 1, "Delta-stepping bucket width")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for distances (JSON); defaults to stdout")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&ledgerPath, "ledger", "", "Path to the read-group ledger sqlite file (empty = in-memory)")
	rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Global()
	tr := tracer.NewNoop()
	tracer.SetGlobal(tr)

	numThreads := threads
	if numThreads <= 0 {
		numThreads = cfg.Runtime.ThreadCount
	}
	pool := threadpool.New(numThreads)

	policy, err := memsup.NewPolicyByName(cfg.Runtime.Policy, memprobe.NewProcessSource(), cfg.Runtime.PhysicalBudget)
	if err != nil {
		return fmt.Errorf("resolve memory policy: %w", err)
	}
	supervisor := memsup.New(policy, memsup.WithLogger(log), memsup.WithTracer(tr))

	cache := manager.NewPropertyCache(cfg.Runtime.PropertyCacheCap)
	pm := manager.NewPropertyManager("sssp_property_cache", cache, supervisor)
	if err := supervisor.Register(pm); err != nil {
		return fmt.Errorf("register property manager: %w", err)
	}

	ledger, err := loader.OpenLedger(ledgerPath)
	if err != nil {
		return fmt.Errorf("open read-group ledger: %w", err)
	}
	defer ledger.Close()

	ld := loader.NewLoader(ledger, pm, pool)
	g, err := ld.LoadPropertyGraph(context.Background(), inputURI, loader.Options{
		Role:           "sssp",
		EdgeProperties: []string{"weight"},
	})
	if err != nil {
		return fmt.Errorf("load property graph: %w", err)
	}

	result, err := algo.SSSP(context.Background(), pool, g, sourceNode, delta)
	if err != nil {
		return fmt.Errorf("run sssp: %w", err)
	}

	return writeDistances(outputPath, result.Distance)
}

func writeDistances(path string, distance []int64) error {
	data, err := json.MarshalIndent(map[string]any{"distance": distance}, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0644)
}
