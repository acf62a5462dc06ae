package mcp

import "time"

// SweepInput defines the input for the echonull_sweep tool. Unset fields
// fall back to the server's configuration.
type SweepInput struct {
	Runs       *int    `json:"runs,omitempty" jsonschema:"Number of runs (default from config)"`
	Thresholds *string `json:"thresholds,omitempty" jsonschema:"Comma-separated graph thresholds, empty string for none"`
	Out        string  `json:"out,omitempty" jsonschema:"Output directory relative to the server root"`
	SeedBase   *int64  `json:"seed_base,omitempty" jsonschema:"Seed base; run i uses seed_base+i"`
	Workers    int     `json:"workers,omitempty" jsonschema:"Concurrent runs (default from config)"`
	Archive    *bool   `json:"archive,omitempty" jsonschema:"Package the output tree next to the output directory"`
	Format     string  `json:"format,omitempty" jsonschema:"Archive format: zip or tar.gz"`
}

// SweepOutput defines the output for the echonull_sweep tool.
type SweepOutput struct {
	SweepID        string `json:"sweep_id"`
	Runs           int    `json:"runs"`
	Out            string `json:"out"`
	OverviewSHA256 string `json:"overview_sha256"`
	ArchivePath    string `json:"archive_path,omitempty"`
	Drift          []int  `json:"drift,omitempty" jsonschema:"Runs whose dataset digests changed since the last identical sweep"`
	DurationMs     int64  `json:"duration_ms"`
	Message        string `json:"message"`
}

// VerifyInput defines the input for the echonull_verify tool.
type VerifyInput struct {
	Out string `json:"out,omitempty" jsonschema:"Output directory relative to the server root"`
}

// VerifyOutput defines the output for the echonull_verify tool.
type VerifyOutput struct {
	Out            string   `json:"out"`
	Valid          bool     `json:"valid"`
	Runs           int      `json:"runs"`
	OverviewSHA256 string   `json:"overview_sha256,omitempty"`
	Archives       []string `json:"archives,omitempty"`
	Message        string   `json:"message"`
}

// HistoryInput defines the input for the echonull_history tool.
type HistoryInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Sweep id to show; omit to list recent sweeps"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum sweeps to list (default 20)"`
}

// HistoryOutput defines the output for the echonull_history tool.
type HistoryOutput struct {
	Sweeps []SweepRecord `json:"sweeps"`
	Count  int           `json:"count"`
}

// SweepRecord is one ledger entry as returned by echonull_history.
type SweepRecord struct {
	ID             string    `json:"id"`
	FinishedAt     time.Time `json:"finished_at"`
	Runs           int       `json:"runs"`
	Thresholds     []float64 `json:"thresholds"`
	SeedBase       int64     `json:"seed_base"`
	OutDir         string    `json:"out_dir"`
	OverviewSHA256 string    `json:"overview_sha256"`
	ArchivePath    string    `json:"archive_path,omitempty"`
	RunDigests     int       `json:"run_digests,omitempty"`
}
