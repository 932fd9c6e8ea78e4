package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/observability/metrics"
	"github.com/aus-land-clearing/landcover/internal/publish"
	"github.com/aus-land-clearing/landcover/internal/trend"
)

// SummaryFile is the name of the run summary in the output directory.
const SummaryFile = "summary.yaml"

// StateReport is the outcome of one state's run.
type StateReport struct {
	State            string         `yaml:"state"`
	RequestedYears   []int          `yaml:"requested_years"`
	ExportedYears    []int          `yaml:"exported_years"`
	SubstitutedYears []int          `yaml:"substituted_years,omitempty"`
	FailedYears      []int          `yaml:"failed_years,omitempty"`
	NoDataYears      []int          `yaml:"no_data_years,omitempty"`
	YearErrors       map[int]string `yaml:"year_errors,omitempty"`
	Files            []string       `yaml:"files,omitempty"`
	Source           string         `yaml:"source,omitempty"`
	Synthetic        bool           `yaml:"synthetic"`
	MissingBoundary  bool           `yaml:"missing_boundary,omitempty"`
	Animation        string         `yaml:"animation,omitempty"`
	AnimationFrames  int            `yaml:"animation_frames,omitempty"`
	Trend            *TrendReport   `yaml:"trend,omitempty"`
	FinalState       State          `yaml:"final_state"`
	ErrorStage       string         `yaml:"error_stage,omitempty"`
	Error            string         `yaml:"error,omitempty"`
	Transitions      []Transition   `yaml:"transitions"`
	Started          time.Time      `yaml:"started"`
	Finished         time.Time      `yaml:"finished"`
}

// TrendReport holds woody-fraction statistics for the exported stack.
type TrendReport struct {
	Series trend.Series       `yaml:"series"`
	Change *trend.ChangeStats `yaml:"change,omitempty"`
	Events []trend.Event      `yaml:"events,omitempty"`
}

// Progress renders exported/requested, e.g. "3/4".
func (r *StateReport) Progress() string {
	return fmt.Sprintf("%d/%d", len(r.ExportedYears), len(r.RequestedYears))
}

// Failed reports whether the state must count against the exit status.
func (r *StateReport) Failed(requireReal bool) bool {
	return r.MissingBoundary ||
		len(r.ExportedYears) == 0 ||
		(requireReal && r.Synthetic)
}

// Outcome classifies the run for metrics.
func (r *StateReport) Outcome() string {
	switch {
	case len(r.ExportedYears) == 0:
		return metrics.OutcomeFailure
	case len(r.FailedYears) > 0 || len(r.NoDataYears) > 0 || r.FinalState == StateError:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeSuccess
	}
}

// Summary is the outcome of a batch run over several states.
type Summary struct {
	RunID        string           `yaml:"run_id"`
	Started      time.Time        `yaml:"started"`
	Finished     time.Time        `yaml:"finished"`
	OutputDir    string           `yaml:"output_dir"`
	States       []*StateReport   `yaml:"states"`
	Published    []publish.Object `yaml:"published,omitempty"`
	PublishError string           `yaml:"publish_error,omitempty"`
}

// ExitCode is 0 when every state exported at least one year from a usable
// source, and 1 otherwise. Synthetic data only counts as a failure when
// requireReal is set.
func (s *Summary) ExitCode(requireReal bool) int {
	if len(s.States) == 0 {
		return 1
	}
	for _, r := range s.States {
		if r.Failed(requireReal) {
			return 1
		}
	}
	return 0
}

// Artifacts lists every file the run produced, rasters first.
func (s *Summary) Artifacts() []string {
	var files []string
	for _, r := range s.States {
		files = append(files, r.Files...)
	}
	for _, r := range s.States {
		if r.Animation != "" {
			files = append(files, r.Animation)
		}
	}
	return files
}

// WriteFile stores the summary as YAML, creating the directory if needed.
func (s *Summary) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileParsing).
			Context("operation", "marshal-summary").
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return summaryIOError(err, path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return summaryIOError(err, path)
	}
	return nil
}

// ReadSummary loads a summary written by WriteFile.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, summaryIOError(err, path)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return &s, nil
}

func summaryIOError(err error, path string) error {
	return errors.New(err).
		Component("pipeline").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
