package navigation

// Defaults is the behavior a renderer applies when no listener is installed:
// let the renderer load everything itself and refuse anything that needs a user decision.
type Defaults struct{}

var _ Listener = Defaults{}

func (Defaults) OnPageStarted(View, string)                {}
func (Defaults) OnPageFinished(View, string)               {}
func (Defaults) OnPageCommitVisible(View, string)          {}
func (Defaults) OnLoadResource(View, string)               {}
func (Defaults) DoUpdateVisitedHistory(View, string, bool) {}

func (Defaults) ShouldOverrideURLLoading(View, Request) bool { return false }

func (Defaults) ShouldInterceptRequest(View, Request) *Response { return nil }

func (Defaults) OnReceivedError(View, Request, ResourceError)        {}
func (Defaults) OnReceivedHTTPError(View, Request, Response)         {}
func (Defaults) OnReceivedLoginRequest(View, string, string, string) {}

func (Defaults) OnRenderProcessGone(View, RenderProcessGoneDetail) bool { return false }

func (Defaults) OnReceivedSslError(_ View, handler SslErrorHandler, _ SslError) {
	if handler != nil {
		handler.Cancel()
	}
}

func (Defaults) OnReceivedClientCertRequest(_ View, request ClientCertRequest) {
	if request != nil {
		request.Cancel()
	}
}

func (Defaults) OnReceivedHTTPAuthRequest(_ View, handler HTTPAuthHandler, _, _ string) {
	if handler != nil {
		handler.Cancel()
	}
}

func (Defaults) OnSafeBrowsingHit(_ View, _ Request, _ ThreatType, callback SafeBrowsingCallback) {
	if callback != nil {
		callback.ShowInterstitial(true)
	}
}

func (Defaults) OnTooManyRedirects(_ View, cancel, _ Message) {
	if cancel != nil {
		cancel.SendToTarget()
	}
}

func (Defaults) OnFormResubmission(_ View, dontResend, _ Message) {
	if dontResend != nil {
		dontResend.SendToTarget()
	}
}

func (Defaults) ShouldOverrideKeyEvent(View, KeyEvent) bool { return false }

func (Defaults) OnUnhandledKeyEvent(View, KeyEvent)    {}
func (Defaults) OnScaleChanged(View, float32, float32) {}

// Or returns l, or Defaults when l is nil.
func Or(l Listener) Listener {
	if l == nil {
		return Defaults{}
	}
	return l
}
