package prusalink

import (
	"bytes"
	"encoding/json"

	"github.com/spf13/cast"
)

// Info is the /api/v1/info document: the printer's static identity.
type Info struct {
	Name             string  `json:"name"`
	Hostname         string  `json:"hostname"`
	Serial           string  `json:"serial"`
	NozzleDiameter   float64 `json:"nozzle_diameter"`
	MinExtrusionTemp float64 `json:"min_extrusion_temp"`
	MMU              bool    `json:"mmu"`
}

// Status is the /api/v1/status document.
//
// The job subsection is kept raw because its presence is not guaranteed.
// Use JobSection to inspect it.
type Status struct {
	Printer PrinterStatus   `json:"printer"`
	Job     json.RawMessage `json:"job,omitempty"`
}

// PrinterStatus holds the operational state and temperatures.
type PrinterStatus struct {
	State        string  `json:"state"`
	TempNozzle   float64 `json:"temp_nozzle"`
	TargetNozzle float64 `json:"target_nozzle"`
	TempBed      float64 `json:"temp_bed"`
	TargetBed    float64 `json:"target_bed"`
	AxisZ        float64 `json:"axis_z"`
	Flow         float64 `json:"flow"`
	Speed        float64 `json:"speed"`
	FanHotend    float64 `json:"fan_hotend"`
	FanPrint     float64 `json:"fan_print"`
}

// JobState classifies the job subsection of a Status document.
type JobState int

const (
	// JobAbsent means the printer reported no job subsection.
	JobAbsent JobState = iota

	// JobMalformed means the subsection exists but cannot be used:
	// it does not decode or lacks time_printing or progress.
	JobMalformed

	// JobPresent means the subsection decoded with all required fields.
	JobPresent
)

// String returns the state name for logs.
func (s JobState) String() string {
	switch s {
	case JobAbsent:
		return "absent"
	case JobMalformed:
		return "malformed"
	case JobPresent:
		return "present"
	default:
		return "unknown"
	}
}

// StatusJob is the job subsection of a Status document.
type StatusJob struct {
	ID            int
	Progress      float64
	TimePrinting  float64
	TimeRemaining float64
}

type rawStatusJob struct {
	ID            *int     `json:"id"`
	Progress      *float64 `json:"progress"`
	TimePrinting  *float64 `json:"time_printing"`
	TimeRemaining *float64 `json:"time_remaining"`
}

// JobSection decodes the job subsection.
// The returned StatusJob is only meaningful when the state is JobPresent.
func (s *Status) JobSection() (StatusJob, JobState) {
	raw := bytes.TrimSpace(s.Job)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return StatusJob{}, JobAbsent
	}

	var r rawStatusJob
	if err := json.Unmarshal(raw, &r); err != nil {
		return StatusJob{}, JobMalformed
	}
	if r.TimePrinting == nil || r.Progress == nil {
		return StatusJob{}, JobMalformed
	}

	job := StatusJob{
		Progress:     *r.Progress,
		TimePrinting: *r.TimePrinting,
	}
	if r.ID != nil {
		job.ID = *r.ID
	}
	if r.TimeRemaining != nil {
		job.TimeRemaining = *r.TimeRemaining
	}
	return job, JobPresent
}

// Job is the /api/v1/job document describing the active print.
type Job struct {
	ID            int     `json:"id"`
	State         string  `json:"state"`
	Progress      float64 `json:"progress"`
	TimePrinting  float64 `json:"time_printing"`
	TimeRemaining float64 `json:"time_remaining"`
	File          File    `json:"file"`
}

// File describes the G-code file of a job.
type File struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Meta        Meta   `json:"meta"`
}

// Meta is the slicer metadata attached to a file.
//
// PrusaLink reports values as numbers or strings depending on the slicer,
// so lookups coerce and fall back to the zero value.
type Meta map[string]any

// Well-known metadata keys.
const (
	MetaEstimatedPrintTime = "estimated_print_time"
	MetaNozzleDiameter     = "nozzle_diameter"
	MetaLayerHeight        = "layer_height"
	MetaFilamentUsedMM     = "filament used [mm]"
	MetaFilamentUsedG      = "filament used [g]"
	MetaFilamentType       = "filament_type"
	MetaFillDensity        = "fill_density"
)

// Float returns the value for key as a number, or 0 if absent or not numeric.
func (m Meta) Float(key string) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}

// String returns the value for key as text, or "" if absent.
func (m Meta) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}
