package navigation

// Request describes a resource or navigation request seen by the renderer.
type Request struct {
	URL         string
	Method      string
	Headers     map[string]string
	IsMainFrame bool
	IsRedirect  bool
	HasGesture  bool
}

// Response is a response a listener can serve in place of a network load, or the
// response the renderer received for a request.
type Response struct {
	StatusCode int
	Reason     string
	MimeType   string
	Headers    map[string]string
	Body       []byte
}

type ResourceError struct {
	Code        int
	Description string
}

func (e ResourceError) Error() string {
	return e.Description
}

type SslError struct {
	URL    string
	Reason string
}

type RenderProcessGoneDetail struct {
	DidCrash bool
	Reason   string
}

type KeyEvent struct {
	Key  string
	Down bool
}

type ThreatType int

const (
	ThreatUnknown ThreatType = iota
	ThreatMalware
	ThreatPhishing
	ThreatUnwantedSoftware
	ThreatBilling
)

// Message is a deferred reply the renderer waits on, e.g. whether to resend a form.
type Message interface {
	SendToTarget()
}

type SslErrorHandler interface {
	Proceed()
	Cancel()
}

type HTTPAuthHandler interface {
	Proceed(username, password string)
	Cancel()
}

type ClientCertRequest interface {
	Host() string
	Ignore()
	Cancel()
}

type SafeBrowsingCallback interface {
	ShowInterstitial(allowReporting bool)
	Proceed(report bool)
	BackToSafety(report bool)
}

// MessageFunc adapts a function to the Message interface.
type MessageFunc func()

func (f MessageFunc) SendToTarget() {
	f()
}
