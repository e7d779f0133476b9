package grace

import (
	"context"
	"errors"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/sre-norns/wyrd/pkg/grace"
)

// ExitOrLog logs err and exits with a non-zero code. Cancellation is not an error.
func ExitOrLog(logger log.Logger, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if logger == nil {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}

	var actionable grace.Error
	if errors.As(err, &actionable) {
		level.Error(logger).Log(
			"msg", "failed",
			"expected", actionable.WhatExpected(),
			"got", actionable.WhatHappened(),
			"todo", actionable.WhatToDo(),
		)
	} else {
		level.Error(logger).Log("msg", "failed", "err", err)
	}

	os.Exit(1)
}
