// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package workload is the reference CSV workload source. The format is the
// PanDA-style job dump the simulator has always consumed: a header row
// naming columns (matched case-insensitively), one job per data row, with
// input files carried as a JSON-ish "files_info" column and output files
// synthesized from the declared count and aggregate byte total.
//
// The executor consumes this package only through its WorkloadSource
// interface; swapping in a different ingestion format means implementing
// that interface, not changing the core.
package workload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
)

// CSVSource loads jobs from one CSV document.
type CSVSource struct {
	path      string
	refGflops float64
	logger    logging.Logger
}

// NewCSVSource builds a source reading from path.
func NewCSVSource(path string, logger logging.Logger) *CSVSource {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CSVSource{path: path, logger: logger}
}

// WithReferenceGflops sets the per-core GFLOPS rating used to turn a row's
// CPU-consumption time into the job's flops estimate at ingestion. The
// natural choice is the best site's rating, giving every job a placement-
// independent compute-cost estimate before any policy sees it. Zero leaves
// the estimate at zero.
func (s *CSVSource) WithReferenceGflops(gflops float64) *CSVSource {
	s.refGflops = gflops
	return s
}

// GetJobs reads up to n jobs from the file, or all of them when n < 0.
// Rows that fail to parse are skipped with a warning rather than aborting
// the run, matching how the simulator has always treated dirty workload
// dumps.
func (s *CSVSource) GetJobs(n int64) ([]*job.Job, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("workload: open %s: %w", s.path, err)
	}
	defer f.Close()
	return s.parse(f, n)
}

func (s *CSVSource) parse(r io.Reader, n int64) ([]*job.Job, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("workload: read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var jobs []*job.Job
	for {
		if n >= 0 && int64(len(jobs)) >= n {
			break
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("skipping unreadable workload row", "path", s.path, "error", err)
			continue
		}
		j, err := s.parseRow(row, columns)
		if err != nil {
			s.logger.Warn("skipping invalid workload row", "path", s.path, "error", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *CSVSource) parseRow(row []string, columns map[string]int) (*job.Job, error) {
	id, err := strconv.ParseInt(column(row, columns, "pandaid", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("workload: bad pandaid: %w", err)
	}
	cores, err := strconv.Atoi(column(row, columns, "corecount", "0"))
	if err != nil {
		return nil, fmt.Errorf("workload: bad corecount: %w", err)
	}
	cpuTime, err := strconv.ParseFloat(column(row, columns, "cpuconsumptiontime", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("workload: bad cpuconsumptiontime: %w", err)
	}
	priority, _ := strconv.Atoi(column(row, columns, "currentpriority", "0"))

	// flops_hint is fixed at ingestion; nothing downstream rewrites it.
	flops := s.refGflops * cpuTime * float64(cores)
	j := job.New(id, cores, flops, priority)
	j.CPUConsumptionTime = cpuTime

	nInputs, _ := strconv.Atoi(column(row, columns, "ninputdatafiles", "0"))
	inputBytes, _ := strconv.ParseFloat(column(row, columns, "inputfilebytes", "0"), 64)
	for _, name := range parseFilesInfo(column(row, columns, "files_info", "")) {
		size := int64(0)
		if nInputs > 0 {
			size = int64(inputBytes) / int64(nInputs)
		}
		j.InputFiles[name] = &job.InputFile{Size: size, Locations: make(map[string]struct{})}
	}

	nOutputs, _ := strconv.Atoi(column(row, columns, "noutputdatafiles", "0"))
	outputBytes, _ := strconv.ParseFloat(column(row, columns, "outputfilebytes", "0"), 64)
	var sizePerOutput int64
	if nOutputs > 0 {
		sizePerOutput = int64(outputBytes) / int64(nOutputs)
	}
	for f := 1; f <= nOutputs; f++ {
		filename := fmt.Sprintf("/output/user.output.%d.0000%d.root", id, f)
		j.OutputFiles[filename] = sizePerOutput
	}

	return j, nil
}

// column returns the named field of a row, or def when the column is
// absent, out of range, or empty.
func column(row []string, columns map[string]int, key, def string) string {
	idx, ok := columns[key]
	if !ok || idx < 0 || idx >= len(row) {
		return def
	}
	value := strings.TrimSpace(row[idx])
	if value == "" {
		return def
	}
	return value
}

// parseFilesInfo pulls the filenames out of the "files_info" column, a
// loosely JSON-shaped map written as {"name": ..., "name": ...}. Only the
// keys matter; sizes are resolved against the file registry at build time.
func parseFilesInfo(raw string) []string {
	raw = strings.Trim(raw, `"`)
	raw = strings.NewReplacer("{", "", "}", "").Replace(raw)
	if raw == "" {
		return nil
	}

	var names []string
	for _, token := range strings.Split(raw, ",") {
		colon := strings.Index(token, ":")
		if colon < 0 {
			continue
		}
		key := strings.TrimSpace(token[:colon])
		key = strings.ReplaceAll(key, `"`, "")
		if key != "" {
			names = append(names, key)
		}
	}
	return names
}
