package cli

import (
	"time"

	"github.com/shaiso/mediacorr/internal/domain"
)

func printRun(out *Output, run *domain.Run) {
	t := NewTable("JOB", "RESOURCE", "STATUS", "DURATION", "REASON")
	for _, j := range run.Jobs {
		t.Add(j.Name, j.Resource, string(j.Status), formatDuration(j.Duration()), j.Reason)
	}
	out.Print(t, run)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
