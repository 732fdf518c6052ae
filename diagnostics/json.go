package diagnostics

import "encoding/json"

type healthJSON struct {
	Status     string            `json:"status"`
	TotalWorkers int             `json:"total_workers"`
	JobsProcessed uint64         `json:"jobs_processed"`
	Components []componentJSON   `json:"components"`
}

type componentJSON struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type bottleneckJSON struct {
	HasBottleneck   bool     `json:"has_bottleneck"`
	Type            string   `json:"type"`
	Severity        int      `json:"severity"`
	SeverityLabel   string   `json:"severity_label"`
	QueueSaturation float64  `json:"queue_saturation"`
	Utilization     float64  `json:"worker_utilization"`
	Recommendations []string `json:"recommendations"`
}

type threadJSON struct {
	WorkerID      int     `json:"worker_id"`
	State         string  `json:"state"`
	JobsCompleted uint64  `json:"jobs_completed"`
	Utilization   float64 `json:"utilization"`
}

type diagnosticsJSON struct {
	Health     healthJSON      `json:"health"`
	Bottleneck bottleneckJSON  `json:"bottleneck"`
	Workers    []threadJSON    `json:"workers"`
	Queue      queueJSON       `json:"queue"`
}

type queueJSON struct {
	Depth int `json:"depth"`
}

func marshalDiagnostics(h HealthStatus, b BottleneckReport, threads []ThreadInfo) ([]byte, error) {
	doc := diagnosticsJSON{
		Health: healthJSON{
			Status:        h.OverallStatus.String(),
			TotalWorkers:  h.TotalWorkers,
			JobsProcessed: h.TotalJobsProcessed,
		},
		Bottleneck: bottleneckJSON{
			HasBottleneck:   b.HasBottleneck,
			Type:            b.Type.String(),
			Severity:        b.Severity(),
			SeverityLabel:   b.SeverityString(),
			QueueSaturation: b.QueueSaturation,
			Utilization:     b.WorkerUtilization,
			Recommendations: b.Recommendations,
		},
		Queue: queueJSON{Depth: b.QueueDepth},
	}
	for _, c := range h.Components {
		doc.Health.Components = append(doc.Health.Components, componentJSON{
			Name:    c.Name,
			State:   c.State.String(),
			Message: c.Message,
		})
	}
	for _, t := range threads {
		doc.Workers = append(doc.Workers, threadJSON{
			WorkerID:      t.WorkerID,
			State:         t.State.String(),
			JobsCompleted: t.JobsCompleted,
			Utilization:   t.Utilization,
		})
	}
	return json.Marshal(doc)
}
