package retrieval

import "github.com/poiesic/kbot/core"

// Monitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps and results.
type Monitor interface {
	Start(botKey, question string)
	AfterEmbedding(vector []float32)
	AfterQuery(result *core.QueryResult)
	Finish(r *Retrieval)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)              {}
func (n *noopMonitor) AfterEmbedding(_ []float32)     {}
func (n *noopMonitor) AfterQuery(_ *core.QueryResult) {}
func (n *noopMonitor) Finish(_ *Retrieval)            {}
