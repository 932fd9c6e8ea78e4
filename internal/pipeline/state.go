package pipeline

import (
	"time"

	"github.com/aus-land-clearing/landcover/internal/logger"
)

// State is a step of the per-state run.
type State string

// Run states. Error absorbs: once entered, no further transitions happen.
const (
	StateIdle         State = "idle"
	StateAOILoaded    State = "aoi_loaded"
	StateFetched      State = "fetched"
	StateReclassified State = "reclassified"
	StateExporting    State = "exporting"
	StateExported     State = "exported"
	StateAnimating    State = "animating"
	StateDone         State = "done"
	StateError        State = "error"
)

// Transition is one recorded state change. Year is set while exporting.
type Transition struct {
	From State     `yaml:"from"`
	To   State     `yaml:"to"`
	Year int       `yaml:"year,omitempty"`
	At   time.Time `yaml:"at"`
}

// machine tracks the current state of one run and mirrors every change into
// the report.
type machine struct {
	report *StateReport
	log    logger.Logger
	now    func() time.Time
}

func newMachine(report *StateReport, log logger.Logger, now func() time.Time) *machine {
	report.FinalState = StateIdle
	return &machine{report: report, log: log, now: now}
}

func (m *machine) current() State {
	return m.report.FinalState
}

func (m *machine) to(next State) {
	m.move(next, 0)
}

func (m *machine) exporting(year int) {
	m.move(StateExporting, year)
}

func (m *machine) move(next State, year int) {
	from := m.current()
	if from == StateError {
		return
	}
	m.report.Transitions = append(m.report.Transitions, Transition{From: from, To: next, Year: year, At: m.now()})
	m.report.FinalState = next
	fields := []logger.Field{logger.String("from", string(from)), logger.String("to", string(next))}
	if year != 0 {
		fields = append(fields, logger.Int("year", year))
	}
	m.log.Debug("state transition", fields...)
}

// fail enters Error, recording the stage that failed.
func (m *machine) fail(stage string, err error) {
	if m.current() == StateError {
		return
	}
	m.move(StateError, 0)
	m.report.ErrorStage = stage
	if err != nil {
		m.report.Error = err.Error()
	}
}
