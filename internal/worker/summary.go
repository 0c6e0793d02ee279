package worker

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"

	"quicktask/backend/internal/services"
)

const payloadUserID = "user_id"

// ScheduleSummaryRefresh queues a recomputation of the owner's dashboard
// summary.
func (q *JobQueue) ScheduleSummaryRefresh(ctx context.Context, ownerID uuid.UUID) error {
	job, err := q.Enqueue(ctx, JobTypeSummaryRefresh, map[string]string{payloadUserID: ownerID.String()})
	if err != nil {
		return err
	}
	q.logger.Debug().Str("job_id", job.ID).Str("user_id", ownerID.String()).Msg("summary refresh scheduled")
	return nil
}

func NewSummaryRefreshHandler(dashboard services.DashboardService) JobHandler {
	return func(ctx context.Context, job *Job) error {
		ownerID, err := uuid.FromString(job.Payload[payloadUserID])
		if err != nil {
			return fmt.Errorf("%w: invalid user id %q", ErrPermanent, job.Payload[payloadUserID])
		}

		if _, err := dashboard.RefreshSummary(ctx, ownerID); err != nil {
			return fmt.Errorf("refresh summary: %w", err)
		}
		return nil
	}
}

var _ services.SummaryScheduler = (*JobQueue)(nil)
