package chrome

import (
	"strings"

	"github.com/go-kit/log/level"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/sre-norns/skuld/pkg/navigation"
)

// Error code reported for failed document loads, matching the generic "unknown error" of embedded renderers.
const errorUnknown = -1

func (r *Renderer) isMainFrame(frameID proto.PageFrameID) bool {
	return frameID == r.page.FrameID
}

func (r *Renderer) onRequestWillBeSent(e *proto.NetworkRequestWillBeSent) {
	if e.Request == nil {
		return
	}

	if e.Type != proto.NetworkResourceTypeDocument || !r.isMainFrame(e.FrameID) {
		r.handler().OnLoadResource(r, e.Request.URL)
		return
	}

	// Every redirect hop of the main document is reported as a new start.
	request := toRequest(e.Request, true, e.RedirectResponse != nil, e.HasUserGesture)
	r.documents[e.RequestID] = request

	level.Debug(r.logger).Log("msg", "document requested", "url", request.URL, "redirect", request.IsRedirect)
	r.handler().OnPageStarted(r, request.URL)
}

func (r *Renderer) onResponseReceived(e *proto.NetworkResponseReceived) {
	request, ok := r.documents[e.RequestID]
	if !ok || e.Response == nil {
		return
	}

	if e.Response.Status >= 400 {
		r.handler().OnReceivedHTTPError(r, request, toResponse(e.Response))
	}
}

func (r *Renderer) onLoadingFailed(e *proto.NetworkLoadingFailed) {
	request, ok := r.documents[e.RequestID]
	if !ok {
		return
	}
	delete(r.documents, e.RequestID)

	if e.Canceled {
		return
	}

	description := e.ErrorText
	if e.BlockedReason != "" {
		description += " (" + string(e.BlockedReason) + ")"
	}
	r.handler().OnReceivedError(r, request, navigation.ResourceError{
		Code:        errorUnknown,
		Description: description,
	})
}

func (r *Renderer) onFrameNavigated(e *proto.PageFrameNavigated) {
	if e.Frame == nil || e.Frame.ParentID != "" {
		return
	}

	isReload := e.Frame.URL == r.committedURL
	r.committedURL = e.Frame.URL
	r.handler().DoUpdateVisitedHistory(r, e.Frame.URL, isReload)
}

func (r *Renderer) onDOMContentEvent(*proto.PageDomContentEventFired) {
	if r.committedURL == "" {
		return
	}
	r.handler().OnPageCommitVisible(r, r.committedURL)
}

func (r *Renderer) onLoadEvent(*proto.PageLoadEventFired) {
	if r.committedURL == "" {
		return
	}

	// Finished documents no longer need to be tracked.
	clear(r.documents)
	r.handler().OnPageFinished(r, r.committedURL)
}

func (r *Renderer) onTargetCrashed(*proto.InspectorTargetCrashed) {
	handled := r.handler().OnRenderProcessGone(r, navigation.RenderProcessGoneDetail{
		DidCrash: true,
		Reason:   "target crashed",
	})
	if !handled {
		level.Error(r.logger).Log("msg", "renderer crashed", "url", r.committedURL)
	}
}

// installRouter routes every request of the page through the listener's interception hooks
// and the request filter.
func (r *Renderer) installRouter() error {
	router := r.page.HijackRequests()
	if err := router.Add("*", "", r.route); err != nil {
		return err
	}

	r.router = router
	go router.Run()

	return nil
}

type routeAction int

const (
	routeContinue routeAction = iota
	routeAbort
	routeFulfill
	routeBlock
)

// decide picks what happens to an outgoing request. The host listener is asked first,
// then the filter, which is nil for renderers that block nothing.
func decide(view navigation.View, listener navigation.Listener, filter *Filter, request navigation.Request, resourceType, host string) (routeAction, *navigation.Response) {
	if request.IsMainFrame && listener.ShouldOverrideURLLoading(view, request) {
		return routeAbort, nil
	}

	if response := listener.ShouldInterceptRequest(view, request); response != nil {
		return routeFulfill, response
	}

	if filter.ShouldBlock(resourceType, host) {
		return routeBlock, nil
	}

	return routeContinue, nil
}

func (r *Renderer) route(ctx *rod.Hijack) {
	resourceType := ctx.Request.Type()
	request := navigation.Request{
		URL:         ctx.Request.URL().String(),
		Method:      ctx.Request.Method(),
		Headers:     toHeaders(ctx.Request.Headers()),
		IsMainFrame: ctx.Request.IsNavigation(),
	}

	action, response := decide(r, r.handler(), r.filter, request, string(resourceType), ctx.Request.URL().Hostname())
	switch action {
	case routeAbort:
		ctx.Response.Fail(proto.NetworkErrorReasonAborted)
	case routeFulfill:
		fulfill(ctx, response)
	case routeBlock:
		level.Debug(r.logger).Log("msg", "request blocked", "url", request.URL, "type", resourceType)
		ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	default:
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	}
}

func fulfill(ctx *rod.Hijack, response *navigation.Response) {
	status := response.StatusCode
	if status == 0 {
		status = 200
	}

	payload := ctx.Response.Payload()
	payload.ResponseCode = status
	payload.ResponsePhrase = response.Reason
	if response.MimeType != "" {
		ctx.Response.SetHeader("Content-Type", response.MimeType)
	}
	for k, v := range response.Headers {
		ctx.Response.SetHeader(k, v)
	}
	ctx.Response.SetBody(response.Body)
}

func toRequest(req *proto.NetworkRequest, isMainFrame, isRedirect, hasGesture bool) navigation.Request {
	url := req.URL
	if req.URLFragment != "" && !strings.Contains(url, "#") {
		url += req.URLFragment
	}

	return navigation.Request{
		URL:         url,
		Method:      req.Method,
		Headers:     toHeaders(req.Headers),
		IsMainFrame: isMainFrame,
		IsRedirect:  isRedirect,
		HasGesture:  hasGesture,
	}
}

func toResponse(res *proto.NetworkResponse) navigation.Response {
	return navigation.Response{
		StatusCode: res.Status,
		Reason:     res.StatusText,
		MimeType:   res.MIMEType,
		Headers:    toHeaders(res.Headers),
	}
}

func toHeaders(headers proto.NetworkHeaders) map[string]string {
	if len(headers) == 0 {
		return nil
	}

	result := make(map[string]string, len(headers))
	for k, v := range headers {
		result[k] = v.Str()
	}

	return result
}
