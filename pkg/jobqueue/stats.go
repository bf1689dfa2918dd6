package jobqueue

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	TotalJobs         int                     `json:"total_jobs"`
	ByQueue           map[QueueType]QueueStat `json:"by_queue"`
	ByStatus          map[JobStatus]int       `json:"by_status"`
	ByPriority        map[Priority]int        `json:"by_priority"`
	ActiveQueues      int                     `json:"active_queues"`
	PausedQueues      int                     `json:"paused_queues"`
	Workers           WorkerStats             `json:"workers"`
	DeadLetterJobs    int                     `json:"dead_letter_jobs"`
	AvgProcessingTime time.Duration           `json:"avg_processing_time"`
	ProcessingSamples int                     `json:"processing_samples"`
	RecentJobs        []*Job                  `json:"recent_jobs"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// QueueStat summarises one queue.
type QueueStat struct {
	Total      int               `json:"total"`
	ByStatus   map[JobStatus]int `json:"by_status"`
	Processing int               `json:"processing"`
	Completed  int               `json:"completed"`
	Failed     int               `json:"failed"`
	Paused     bool              `json:"paused"`
	Active     bool              `json:"active"`
}

// WorkerStats counts workers by status. Active covers IDLE and BUSY.
type WorkerStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Idle     int `json:"idle"`
	Busy     int `json:"busy"`
	Stopping int `json:"stopping"`
	Stopped  int `json:"stopped"`
}

// GetStats aggregates counts across queues, jobs, workers and the dead-letter
// store. ByPriority only counts PENDING and QUEUED jobs.
func (m *Manager) GetStats() *Stats {
	st := &Stats{
		ByQueue:     make(map[QueueType]QueueStat),
		ByStatus:    make(map[JobStatus]int, len(JobStatuses)),
		ByPriority:  make(map[Priority]int, len(Priorities)),
		GeneratedAt: time.Now(),
	}
	for _, s := range JobStatuses {
		st.ByStatus[s] = 0
	}
	for _, p := range Priorities {
		st.ByPriority[p] = 0
	}

	var all []*Job
	for _, qs := range m.allQueues() {
		qs.mu.Lock()
		q := qs.queue
		qstat := QueueStat{
			ByStatus:   make(map[JobStatus]int),
			Processing: q.ProcessingCount,
			Completed:  q.CompletedCount,
			Failed:     q.FailedCount,
			Paused:     q.Paused,
			Active:     q.Active,
		}
		for _, e := range qs.entries {
			j := e.job
			qstat.Total++
			qstat.ByStatus[j.Status]++
			st.ByStatus[j.Status]++
			if j.Status == JobPending || j.Status == JobQueued {
				st.ByPriority[j.Priority]++
			}
			all = append(all, j.clone())
		}
		qs.mu.Unlock()

		if q.Active {
			st.ActiveQueues++
		}
		if q.Paused {
			st.PausedQueues++
		}
		st.ByQueue[q.Type] = qstat
	}

	for queueType, n := range m.deadLetters.countByQueue() {
		st.DeadLetterJobs += n
		st.ByStatus[JobDead] += n
		if qstat, ok := st.ByQueue[queueType]; ok {
			qstat.Total += n
			qstat.ByStatus[JobDead] += n
			st.ByQueue[queueType] = qstat
		}
	}
	st.TotalJobs = len(all) + st.DeadLetterJobs

	for _, w := range m.GetAllWorkers() {
		st.Workers.Total++
		switch w.Status {
		case WorkerIdle:
			st.Workers.Idle++
		case WorkerBusy:
			st.Workers.Busy++
		case WorkerStopping:
			st.Workers.Stopping++
		case WorkerStopped:
			st.Workers.Stopped++
		}
	}
	st.Workers.Active = st.Workers.Idle + st.Workers.Busy

	st.AvgProcessingTime, st.ProcessingSamples = m.samples.average()

	slices.SortFunc(all, func(a, b *Job) int { return cmp.Compare(b.seq, a.seq) })
	if len(all) > m.cfg.RecentJobs {
		all = all[:m.cfg.RecentJobs]
	}
	st.RecentJobs = all

	return st
}

// durationWindow keeps a rolling sum over the last size samples.
type durationWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

func newDurationWindow(size int) *durationWindow {
	return &durationWindow{samples: make([]time.Duration, max(size, 1))}
}

func (w *durationWindow) record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.full {
		w.sum -= w.samples[w.next]
	}
	w.samples[w.next] = d
	w.sum += d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *durationWindow) average() (time.Duration, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return 0, 0
	}
	return w.sum / time.Duration(n), n
}
