package checkout

import (
	"context"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// sagaStep is one placement step paired with the compensation that undoes
// it. Compensation may be nil for steps with nothing to unwind.
type sagaStep struct {
	name       string
	action     func(ctx context.Context, tx *gorm.DB) error
	compensate func(ctx context.Context, tx *gorm.DB) error
}

// runSaga executes steps in order. When a step fails, the compensations
// of every completed step run in reverse order, then the step's own error
// comes back along with its name. Compensation failures are logged and
// folded into the result; they never mask the original error.
func runSaga(ctx context.Context, logg *logger.Logger, tx *gorm.DB, steps []sagaStep) (string, error) {
	var done []sagaStep
	for _, step := range steps {
		if err := step.action(ctx, tx); err != nil {
			var compErrs error
			for i := len(done) - 1; i >= 0; i-- {
				if done[i].compensate == nil {
					continue
				}
				if cerr := done[i].compensate(ctx, tx); cerr != nil {
					compErrs = multierr.Append(compErrs, cerr)
				}
			}
			if compErrs != nil {
				logg.Error(logg.WithField(ctx, "step", step.name), "saga compensation failed", compErrs)
			}
			return step.name, err
		}
		done = append(done, step)
	}
	return "", nil
}
