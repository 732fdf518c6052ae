package metrics

import (
	"encoding/json"
	"time"
)

type tasksJSON struct {
	Submitted uint64 `json:"submitted"`
	Executed  uint64 `json:"executed"`
	Failed    uint64 `json:"failed"`
}

type percentilesJSON struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

type latencyJSON struct {
	Enqueue   percentilesJSON `json:"enqueue"`
	Execution percentilesJSON `json:"execution"`
	Wait      percentilesJSON `json:"wait"`
}

type throughputJSON struct {
	OneSec float64 `json:"one_sec"`
	OneMin float64 `json:"one_min"`
}

type queueJSON struct {
	Current int64   `json:"current"`
	Peak    int64   `json:"peak"`
	Avg     float64 `json:"avg"`
}

type workersJSON struct {
	Utilization float64   `json:"utilization"`
	Active      int64     `json:"active"`
	PerWorker   []float64 `json:"per_worker"`
}

// jsonSnapshot mirrors EnhancedSnapshot in the wire schema documented for
// the JSON metrics exporter: tasks{submitted,executed,failed},
// latency{enqueue|execution|wait}{p50,p90,p99}, throughput{one_sec,one_min},
// queue{current,peak,avg}, workers{utilization,active,per_worker[]}, timestamp.
type jsonSnapshot struct {
	Tasks      tasksJSON      `json:"tasks"`
	Latency    latencyJSON    `json:"latency"`
	Throughput throughputJSON `json:"throughput"`
	Queue      queueJSON      `json:"queue"`
	Workers    workersJSON    `json:"workers"`
	Timestamp  time.Time      `json:"timestamp"`
}

// MarshalJSON renders an EnhancedSnapshot in the wire schema described on
// jsonSnapshot.
func (s EnhancedSnapshot) MarshalJSON() ([]byte, error) {
	j := jsonSnapshot{
		Tasks: tasksJSON{
			Submitted: s.TasksSubmitted,
			Executed:  s.TasksExecuted,
			Failed:    s.TasksFailed,
		},
		Latency: latencyJSON{
			Enqueue:   percentilesJSON{P50: s.EnqueueLatencyP50Us, P90: s.EnqueueLatencyP90Us, P99: s.EnqueueLatencyP99Us},
			Execution: percentilesJSON{P50: s.ExecutionLatencyP50Us, P90: s.ExecutionLatencyP90Us, P99: s.ExecutionLatencyP99Us},
			Wait:      percentilesJSON{P50: s.WaitTimeP50Us, P90: s.WaitTimeP90Us, P99: s.WaitTimeP99Us},
		},
		Throughput: throughputJSON{OneSec: s.Throughput1s, OneMin: s.Throughput1m},
		Queue: queueJSON{
			Current: s.CurrentQueueDepth,
			Peak:    s.PeakQueueDepth,
			Avg:     s.AvgQueueDepth,
		},
		Workers: workersJSON{
			Utilization: s.WorkerUtilization,
			Active:      s.ActiveWorkers,
			PerWorker:   s.PerWorkerUtilization,
		},
		Timestamp: s.SnapshotTime,
	}
	return json.Marshal(j)
}

// UnmarshalJSON parses the wire schema produced by MarshalJSON back into
// an EnhancedSnapshot.
func (s *EnhancedSnapshot) UnmarshalJSON(data []byte) error {
	var j jsonSnapshot
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	s.TasksSubmitted = j.Tasks.Submitted
	s.TasksExecuted = j.Tasks.Executed
	s.TasksFailed = j.Tasks.Failed

	s.EnqueueLatencyP50Us = j.Latency.Enqueue.P50
	s.EnqueueLatencyP90Us = j.Latency.Enqueue.P90
	s.EnqueueLatencyP99Us = j.Latency.Enqueue.P99
	s.ExecutionLatencyP50Us = j.Latency.Execution.P50
	s.ExecutionLatencyP90Us = j.Latency.Execution.P90
	s.ExecutionLatencyP99Us = j.Latency.Execution.P99
	s.WaitTimeP50Us = j.Latency.Wait.P50
	s.WaitTimeP90Us = j.Latency.Wait.P90
	s.WaitTimeP99Us = j.Latency.Wait.P99

	s.Throughput1s = j.Throughput.OneSec
	s.Throughput1m = j.Throughput.OneMin

	s.CurrentQueueDepth = j.Queue.Current
	s.PeakQueueDepth = j.Queue.Peak
	s.AvgQueueDepth = j.Queue.Avg

	s.ActiveWorkers = j.Workers.Active
	s.WorkerUtilization = j.Workers.Utilization
	s.PerWorkerUtilization = j.Workers.PerWorker

	s.SnapshotTime = j.Timestamp

	return nil
}
