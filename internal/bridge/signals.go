package bridge

import (
	"encoding/json"

	"github.com/nerrad567/prusalink-bridge/internal/prusalink"
)

// Signal is one logical value the bridge publishes.
//
// The set is closed: adding a signal means adding a constant here and a
// descriptor in the table below. Order is publish order, job signals first.
type Signal int

const (
	JobProgress Signal = iota
	JobPercentage
	JobName
	JobElapsedTime
	JobEstimatedTime
	JobRemainingTime
	JobNozzleDiameter
	JobLayerHeight
	JobFilamentUsedMM
	JobFilamentUsedG
	JobFilamentType
	JobInfill
	PrinterStatus
	PrinterNozzleTemp
	PrinterBedTemp
	PrinterTargetNozzleTemp
	PrinterTargetBedTemp
	PrinterCustomNozzleTemp
	PrinterCustomBedTemp

	signalCount
)

// Locations labels the two custom temperature readings.
type Locations struct {
	Nozzle string
	Bed    string
}

// descriptor binds a signal to its configuration key and derivation.
// derive must return a value for any cycle that has status and info,
// using defaults for anything missing.
type descriptor struct {
	key    string
	derive func(c *cycle, loc Locations) Value
}

var descriptors = [signalCount]descriptor{
	JobProgress: {"job_progress_topic", func(c *cycle, _ Locations) Value {
		return Document(progressDocument(c))
	}},
	JobPercentage: {"job_percentage_topic", func(c *cycle, _ Locations) Value {
		job, _ := c.status.JobSection()
		return Number(job.Progress)
	}},
	JobName: {"job_name", func(c *cycle, _ Locations) Value {
		return Text(jobName(c))
	}},
	JobElapsedTime: {"job_elapsed_time_topic", func(c *cycle, _ Locations) Value {
		if c.job == nil {
			return Number(0)
		}
		return Number(c.job.TimePrinting)
	}},
	JobEstimatedTime: {"job_estimated_time_topic", metaNumber(prusalink.MetaEstimatedPrintTime)},
	JobRemainingTime: {"job_remaining_time_topic", func(c *cycle, _ Locations) Value {
		if c.job == nil {
			return Number(0)
		}
		return Number(c.job.TimeRemaining)
	}},
	JobNozzleDiameter: {"job_nozzle_diameter_topic", metaNumber(prusalink.MetaNozzleDiameter)},
	JobLayerHeight:    {"job_layer_height_topic", metaNumber(prusalink.MetaLayerHeight)},
	JobFilamentUsedMM: {"job_filament_used_mm_topic", metaNumber(prusalink.MetaFilamentUsedMM)},
	JobFilamentUsedG:  {"job_filament_used_g_topic", metaNumber(prusalink.MetaFilamentUsedG)},
	JobFilamentType:   {"job_filament_type_topic", metaText(prusalink.MetaFilamentType)},
	JobInfill:         {"job_infill_topic", metaText(prusalink.MetaFillDensity)},

	PrinterStatus: {"printer_status_topic", func(c *cycle, _ Locations) Value {
		return Text(c.status.Printer.State)
	}},
	PrinterNozzleTemp: {"printer_nozzle_temp_topic", func(c *cycle, _ Locations) Value {
		return Number(c.status.Printer.TempNozzle)
	}},
	PrinterBedTemp: {"printer_bed_temp_topic", func(c *cycle, _ Locations) Value {
		return Number(c.status.Printer.TempBed)
	}},
	PrinterTargetNozzleTemp: {"printer_target_nozzle_temp_topic", func(c *cycle, _ Locations) Value {
		return Number(c.status.Printer.TargetNozzle)
	}},
	PrinterTargetBedTemp: {"printer_target_bed_temp_topic", func(c *cycle, _ Locations) Value {
		return Number(c.status.Printer.TargetBed)
	}},
	PrinterCustomNozzleTemp: {"printer_custom_nozzle_temp_topic", func(c *cycle, loc Locations) Value {
		return Reading(c.status.Printer.TempNozzle, loc.Nozzle)
	}},
	PrinterCustomBedTemp: {"printer_custom_bed_temp_topic", func(c *cycle, loc Locations) Value {
		return Reading(c.status.Printer.TempBed, loc.Bed)
	}},
}

func metaNumber(key string) func(c *cycle, _ Locations) Value {
	return func(c *cycle, _ Locations) Value {
		if c.job == nil {
			return Number(0)
		}
		return Number(c.job.File.Meta.Float(key))
	}
}

func metaText(key string) func(c *cycle, _ Locations) Value {
	return func(c *cycle, _ Locations) Value {
		if c.job == nil {
			return Text("")
		}
		return Text(c.job.File.Meta.String(key))
	}
}

// Key returns the mqtt_topics configuration key of the signal.
func (s Signal) Key() string {
	if !s.valid() {
		return ""
	}
	return descriptors[s].key
}

// String returns the configuration key, or "signal(N)" for unknown values.
func (s Signal) String() string {
	if !s.valid() {
		return "signal(" + formatNumber(float64(s)) + ")"
	}
	return descriptors[s].key
}

func (s Signal) valid() bool {
	return s >= 0 && s < signalCount
}

// AllSignals returns every signal in publish order.
func AllSignals() []Signal {
	out := make([]Signal, signalCount)
	for i := range out {
		out[i] = Signal(i)
	}
	return out
}

// TopicKeys returns the mqtt_topics keys every configuration must define.
func TopicKeys() []string {
	keys := make([]string, 0, signalCount)
	for _, s := range AllSignals() {
		keys = append(keys, s.Key())
	}
	return keys
}

// progress is the job_progress_topic document. The last will uses the
// same shape so subscribers parse one format.
type progress struct {
	Printer         string  `json:"Printer"`
	Job             string  `json:"Job"`
	ElapsedTimeS    float64 `json:"Elapsed_time_s"`
	ProgressPercent float64 `json:"Progress_percent"`
}

func progressDocument(c *cycle) string {
	job, _ := c.status.JobSection()
	data, err := json.Marshal(progress{
		Printer:         c.info.Name,
		Job:             jobName(c),
		ElapsedTimeS:    job.TimePrinting,
		ProgressPercent: job.Progress,
	})
	if err != nil {
		return `{}`
	}
	return string(data)
}

// jobName picks the displayed job name.
//
// A print that has run for under a second still reports the previous
// job's file, so until time_printing reaches 1 the printer state is shown
// instead. An absent or malformed job subsection also shows the state.
func jobName(c *cycle) string {
	job, state := c.status.JobSection()
	if state == prusalink.JobPresent && job.TimePrinting >= 1 {
		if c.job == nil {
			return ""
		}
		return c.job.File.Name
	}
	return c.status.Printer.State
}
