// Package navigation describes the callbacks a renderer uses to report navigation lifecycle
// events, and the default behavior a renderer applies when nobody handles them.
package navigation

// View is the renderer instance that emitted an event.
type View interface {
	LoadURL(url string)
}

// Listener is the full set of navigation callbacks a renderer delivers.
// Methods that return a value make a decision for the renderer.
type Listener interface {
	OnPageStarted(view View, url string)
	OnPageFinished(view View, url string)
	OnPageCommitVisible(view View, url string)
	OnLoadResource(view View, url string)
	DoUpdateVisitedHistory(view View, url string, isReload bool)

	ShouldOverrideURLLoading(view View, request Request) bool
	ShouldInterceptRequest(view View, request Request) *Response

	OnReceivedError(view View, request Request, err ResourceError)
	OnReceivedHTTPError(view View, request Request, response Response)
	OnRenderProcessGone(view View, detail RenderProcessGoneDetail) bool

	OnReceivedSslError(view View, handler SslErrorHandler, err SslError)
	OnReceivedClientCertRequest(view View, request ClientCertRequest)
	OnReceivedHTTPAuthRequest(view View, handler HTTPAuthHandler, host, realm string)
	OnReceivedLoginRequest(view View, realm, account, args string)
	OnSafeBrowsingHit(view View, request Request, threat ThreatType, callback SafeBrowsingCallback)

	OnTooManyRedirects(view View, cancel, proceed Message)
	OnFormResubmission(view View, dontResend, resend Message)

	ShouldOverrideKeyEvent(view View, event KeyEvent) bool
	OnUnhandledKeyEvent(view View, event KeyEvent)
	OnScaleChanged(view View, oldScale, newScale float32)
}
