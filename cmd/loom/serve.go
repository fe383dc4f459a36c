package main

import (
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"loom/internal/analysis"
	"loom/internal/config"
	"loom/internal/config/loomyaml"
	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
	"loom/internal/termexec"
	"loom/internal/urlcache"
)

var flagServeAddr string

// serveCmd is SPEC_FULL.md's supplemented `loom serve`: host spec
// §4.6/§6.3's terminal protocol over HTTP, one websocket connection per
// run, each handed off to internal/termexec.Session for its lifetime.
// Not part of spec's CLI surface (§6.2 only names the batch runner) but
// required for anything in §4.6 to be reachable at all.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the streamed terminal protocol over a websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(flagServeAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":7420", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

// terminalRegistry is process-wide, matching spec §4.6's "running_steps"
// registry being shared across every connection, not per-session state.
var terminalRegistry = termexec.NewRegistry()

func runServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", handleTerminalConn)
	logging.Default.Info().Str("addr", addr).Msg("loom serve listening")
	return http.ListenAndServe(addr, mux)
}

// handleTerminalConn accepts one websocket connection, loads the
// pipeline it names, reads the opening frame, and dispatches to the mode
// it requests (spec §4.6's three operating modes, plus the ad-hoc
// parallel set).
func handleTerminalConn(w http.ResponseWriter, req *http.Request) {
	pipelinePath := req.URL.Query().Get("pipeline")
	if pipelinePath == "" {
		http.Error(w, "missing ?pipeline= query parameter", http.StatusBadRequest)
		return
	}
	p, err := loomyaml.Load(pipelinePath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cache, err := urlcache.New(p.BaseDir + "/" + urlcache.DefaultDirName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r := resolve.New(p, cache)

	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := req.Context()
	sess := termexec.NewSession(conn, terminalRegistry)
	of, err := sess.ReadOpenFrame(ctx)
	if err != nil {
		return
	}

	graph := orchestrator.BuildDependencyGraph(p)

	switch of.Mode {
	case termexec.ModeStep:
		step, ok := p.StepByName(of.StepName)
		if !ok {
			return
		}
		_ = sess.RunIndependentStep(ctx, step, r)

	case termexec.ModeParallel:
		_ = sess.RunParallelSet(ctx, p, of.StepNames, r)

	case termexec.ModeFromStep, termexec.ModeToData, termexec.ModeAll:
		scope, err := sequentialScope(p, graph, of, r)
		if err != nil {
			return
		}
		o := orchestrator.New(graph, scope)
		sess.RunSequential(ctx, o, p, r)

	default:
		_ = conn.Close(websocket.StatusPolicyViolation, fmt.Sprintf("unknown mode %q", of.Mode))
		return
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// sequentialScope resolves spec §4.6's three dependency-driven modes
// into the ordered step-name list internal/orchestrator.New expects.
func sequentialScope(p *config.Pipeline, graph *orchestrator.DependencyGraph, of termexec.OpenFrame, r *resolve.Resolver) ([]string, error) {
	switch of.Mode {
	case termexec.ModeFromStep:
		return orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{FromStep: of.StepName, IncludeOptional: true})
	case termexec.ModeToData:
		return analysis.StepsToProduce(p, graph, of.DataName, false, r)
	default: // ModeAll
		return orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{IncludeOptional: true})
	}
}
