package analyzer

import (
	"context"
	"path"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/echonull/internal/seeded"
)

// GraphNodes is the node count of every generated graph.
const GraphNodes = 10

// GraphReport is the per-threshold report file payload.
type GraphReport struct {
	Nodes   int     `json:"nodes"`
	Edges   int     `json:"edges"`
	Jaccard float64 `json:"jaccard"`
}

// GraphStats is the per-threshold entry of the graph_analysis section.
// Path is relative to the run directory and uses forward slashes.
type GraphStats struct {
	NNodes  int     `json:"n_nodes"`
	NEdges  int     `json:"n_edges"`
	Jaccard float64 `json:"jaccard"`
	Path    string  `json:"path"`
}

// GraphAnalysis builds one random graph per threshold and reports its size.
type GraphAnalysis struct {
	Thresholds []float64
}

// NewGraphAnalysis copies thresholds so later caller mutation cannot leak in.
func NewGraphAnalysis(thresholds []float64) GraphAnalysis {
	return GraphAnalysis{Thresholds: append([]float64(nil), thresholds...)}
}

func (GraphAnalysis) Name() string { return "graph_analysis" }

// ThresholdKey formats a threshold the way report names and section keys use it.
func ThresholdKey(thr float64) string {
	return strconv.FormatFloat(thr, 'f', 2, 64)
}

// ReportName is the report file name for a threshold, e.g. thr_0.50_report.json.
func ReportName(thr float64) string {
	return "thr_" + ThresholdKey(thr) + "_report.json"
}

func (g GraphAnalysis) Analyze(ctx context.Context, runID int, seed int64, _ any, outDir string) (Section, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := seeded.New(seed, "graph_analysis")
	results := Section{}

	for _, thr := range g.Thresholds {
		edges := erdosRenyiEdges(GraphNodes, min(0.99, 0.2+thr/2), seed)

		jaccard := 1.0
		if runID%2 != 0 {
			jaccard = 0.9 + 0.1*rng.Float64()
		}

		name := ReportName(thr)
		report := GraphReport{Nodes: GraphNodes, Edges: edges, Jaccard: jaccard}
		if err := writeJSON(filepath.Join(outDir, "graph_analysis", name), report); err != nil {
			return nil, err
		}

		results = results.Set(ThresholdKey(thr), GraphStats{
			NNodes:  GraphNodes,
			NEdges:  edges,
			Jaccard: jaccard,
			Path:    path.Join("graph_analysis", name),
		})
	}

	return Section{{Key: g.Name(), Value: results}}, nil
}

// erdosRenyiEdges samples G(n, p) from seed and returns its edge count.
// Each graph gets a fresh source, so a threshold's graph does not depend on
// which thresholds came before it.
func erdosRenyiEdges(n int, p float64, seed int64) int {
	rng := seeded.New(seed, "erdos_renyi")
	edges := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < p {
				edges++
			}
		}
	}
	return edges
}
