package runner

import (
	"context"

	"github.com/sre-norns/skuld/pkg/navigation"
	"github.com/sre-norns/skuld/pkg/results"
)

// Renderer is the web rendering component a pass is measured on.
//
// LoadURL must not block: the renderer starts the navigation on its own execution context
// and reports progress through the installed listener. ClearCookies and ClearCache invoke
// their callback exactly once when done, from any goroutine.
type Renderer interface {
	navigation.View

	Kind() results.Kind

	// Listener returns the currently installed listener, nil if none.
	Listener() navigation.Listener
	SetListener(listener navigation.Listener)

	ClearCookies(onDone func(ok bool))
	ClearCache(onDone func())
}

// Preparer is implemented by renderers that need time to get ready after setup,
// e.g. to load filtering rules.
type Preparer interface {
	WaitReady(ctx context.Context) error
}

// CookieFallback is implemented by renderers with a second way to drop cookies,
// used when ClearCookies reports a failure.
type CookieFallback interface {
	RemoveAllCookies() error
}
