package chrome

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sre-norns/skuld/pkg/navigation"
)

// stubHost aborts navigations to one host and serves a canned response for one URL.
type stubHost struct {
	navigation.Defaults

	abortHost string
	served    map[string]*navigation.Response
}

func (s *stubHost) ShouldOverrideURLLoading(_ navigation.View, request navigation.Request) bool {
	return request.URL == "https://"+s.abortHost+"/"
}

func (s *stubHost) ShouldInterceptRequest(_ navigation.View, request navigation.Request) *navigation.Response {
	return s.served[request.URL]
}

func TestDecide(t *testing.T) {
	offline := &navigation.Response{StatusCode: 200, MimeType: "text/html", Body: []byte("offline")}
	host := &stubHost{
		abortHost: "app.example",
		served:    map[string]*navigation.Response{"https://news.example/offline": offline},
	}
	filter := NewFilter([]string{"images"}, []string{"ads.example"}, nil)

	testCases := map[string]struct {
		filter       *Filter
		request      navigation.Request
		resourceType string
		host         string
		expect       routeAction
	}{
		"baseline-override": {
			request:      navigation.Request{URL: "https://app.example/", IsMainFrame: true},
			resourceType: "Document",
			host:         "app.example",
			expect:       routeAbort,
		},
		"filtering-override": {
			filter:       filter,
			request:      navigation.Request{URL: "https://app.example/", IsMainFrame: true},
			resourceType: "Document",
			host:         "app.example",
			expect:       routeAbort,
		},
		"subresource-never-overridden": {
			request:      navigation.Request{URL: "https://app.example/"},
			resourceType: "Script",
			host:         "app.example",
			expect:       routeContinue,
		},
		"baseline-intercept": {
			request:      navigation.Request{URL: "https://news.example/offline"},
			resourceType: "Document",
			host:         "news.example",
			expect:       routeFulfill,
		},
		"filtering-intercept": {
			filter:       filter,
			request:      navigation.Request{URL: "https://news.example/offline"},
			resourceType: "Document",
			host:         "news.example",
			expect:       routeFulfill,
		},
		"baseline-never-blocks": {
			request:      navigation.Request{URL: "https://ads.example/pixel.png"},
			resourceType: "Image",
			host:         "ads.example",
			expect:       routeContinue,
		},
		"filtering-blocks": {
			filter:       filter,
			request:      navigation.Request{URL: "https://ads.example/pixel.png"},
			resourceType: "Image",
			host:         "ads.example",
			expect:       routeBlock,
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			action, response := decide(nil, host, test.filter, test.request, test.resourceType, test.host)
			require.Equal(t, test.expect, action)
			if test.expect == routeFulfill {
				require.Equal(t, offline, response)
			} else {
				require.Nil(t, response)
			}
		})
	}
}
