package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/pspace/pkg/job"
)

// Keys printed by jobs and status. Started, Finished and Duration are derived
// from the record's timestamps.
var (
	jobsPrintKeys   = []string{"name", "state", "entrypoint", "project", "Started", "Finished", "exitCode", "machineType"}
	statusPrintKeys = []string{"state", "Started", "Finished", "Duration", "exitCode"}
)

const displayTimeLayout = "2006-01-02 15:04:05 MST"

// formatJob renders rec as aligned "key: value" lines. Times are shown in
// the local zone unless utc is set.
func formatJob(rec *job.Record, keys []string, utc bool, now time.Time) string {
	width := 0
	for _, k := range keys {
		width = max(width, len(k)+1)
	}

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%-*s %s\n", width, k+":", jobField(rec, k, utc, now))
	}
	return b.String()
}

func jobField(rec *job.Record, key string, utc bool, now time.Time) string {
	switch key {
	case "id":
		return rec.ID
	case "name":
		return rec.Name
	case "state":
		return string(rec.State)
	case "entrypoint":
		return rec.Entrypoint
	case "project":
		return rec.Project
	case "machineType":
		return rec.MachineType
	case "container":
		return rec.Container
	case "exitCode":
		if rec.ExitCode == nil {
			return ""
		}
		return strconv.Itoa(*rec.ExitCode)
	case "Started":
		return displayTime(rec.StartedAt(), utc)
	case "Finished":
		return displayTime(rec.FinishedAt(), utc)
	case "Duration":
		d, ok := rec.Duration(now)
		if !ok {
			return ""
		}
		return d.Round(time.Second).String()
	default:
		return ""
	}
}

func displayTime(t *time.Time, utc bool) string {
	if t == nil {
		return ""
	}
	if utc {
		return t.UTC().Format(displayTimeLayout)
	}
	return t.Local().Format(displayTimeLayout)
}
