package sink

import (
	"fmt"
	"time"

	"github.com/jittakal/kafeventexport/pkg/message"
	"github.com/jittakal/kafeventexport/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Router = (*DefaultRouter)(nil)

// DefaultRouter implements Hive-style partitioning for segment paths.
type DefaultRouter struct {
	basePath string
}

// NewRouter creates a new segment router. basePath may be empty.
func NewRouter(basePath string) *DefaultRouter {
	return &DefaultRouter{basePath: basePath}
}

// Route returns the segment path for a batch covering the offsets
// [firstOffset, lastOffset], flushed at the given time.
// Format: basePath/topic/dt=YYYY-MM-DD/pid=N/segment-<first>-<last>
// The flush time is used for date partitioning; offsets make the path
// unique and reproducible for one batch.
func (r *DefaultRouter) Route(partition message.PartitionID, firstOffset, lastOffset int64, at time.Time) string {
	date := at.UTC().Format("2006-01-02")

	path := fmt.Sprintf("%s/dt=%s/pid=%d/segment-%020d-%020d",
		partition.Topic,
		date,
		partition.Partition,
		firstOffset,
		lastOffset,
	)

	if r.basePath != "" {
		return r.basePath + "/" + path
	}
	return path
}
