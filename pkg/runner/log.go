package runner

import (
	"bytes"
	"sync"

	"github.com/go-kit/log"
)

const LogRelType = "log"

// RunLog is a logger that keeps a logfmt copy of everything logged during a run,
// passing each line on to the next logger as well.
type RunLog struct {
	next log.Logger

	mu      sync.Mutex
	content bytes.Buffer
	capture log.Logger
}

func NewRunLog(next log.Logger) *RunLog {
	l := &RunLog{next: next}
	l.capture = log.NewLogfmtLogger(&l.content)

	return l
}

func (l *RunLog) Log(keyvals ...any) error {
	l.mu.Lock()
	err := l.capture.Log(keyvals...)
	l.mu.Unlock()

	if l.next != nil {
		if nextErr := l.next.Log(keyvals...); nextErr != nil {
			return nextErr
		}
	}

	return err
}

func (l *RunLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.content.String()
}

func (l *RunLog) ToArtifact() Artifact {
	return Artifact{
		Rel:      LogRelType,
		MimeType: "text/plain",
		Content:  []byte(l.String()),
	}
}
