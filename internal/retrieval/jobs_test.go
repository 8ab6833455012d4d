package retrieval

import "testing"

func TestJobManagerStatus(t *testing.T) {
	m := &JobManager{}

	status := m.Status()
	if status.Status != "idle" || status.LastJob != nil {
		t.Errorf("fresh manager status = %+v, want idle with no last job", status)
	}

	m.last = &JobStats{Processed: 3, Model: EmbeddingModelLarge}
	status = m.Status()
	if status.Status != "completed" {
		t.Errorf("status after a run = %q, want completed", status.Status)
	}
	if status.LastJob == nil || status.LastJob.Processed != 3 {
		t.Errorf("last job = %+v", status.LastJob)
	}

	m.running = true
	if status = m.Status(); status.Status != "running" {
		t.Errorf("status while running = %q, want running", status.Status)
	}
}
