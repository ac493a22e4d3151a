package downloads

// Percent returns completion in [0, 100]. A server-supplied percentage wins;
// otherwise it is derived from bytes. ok is false when neither is usable,
// which is different from zero progress.
func (j Job) Percent() (float64, bool) {
	p := j.Progress
	if p.PercentX100 != nil {
		return clampPercent(float64(*p.PercentX100) / 100), true
	}
	if p.DownloadedBytes != nil && p.TotalBytes != nil && *p.TotalBytes > 0 {
		return clampPercent(float64(*p.DownloadedBytes) / float64(*p.TotalBytes) * 100), true
	}
	return 0, false
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

// Carry keeps the last known progress of running jobs whose fresh row came
// back without any. Jobs are matched by id; nothing else is merged.
func Carry(prev, next []Job) []Job {
	if len(prev) == 0 {
		return next
	}
	byID := make(map[string]Progress, len(prev))
	for _, job := range prev {
		if job.State == StateRunning && !job.Progress.Empty() {
			byID[job.ID] = job.Progress
		}
	}
	out := make([]Job, len(next))
	copy(out, next)
	for i := range out {
		if out[i].State != StateRunning || !out[i].Progress.Empty() {
			continue
		}
		if progress, ok := byID[out[i].ID]; ok {
			out[i].Progress = progress
		}
	}
	return out
}

// Counts tallies jobs by state.
func Counts(jobs []Job) map[State]int {
	out := make(map[State]int, len(jobs))
	for _, job := range jobs {
		out[job.State]++
	}
	return out
}
