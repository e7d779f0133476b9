package chrome

import (
	"strings"
)

// Filter decides which requests the filtering renderer blocks.
type Filter struct {
	resources map[string]bool
	hosts     []string
	allow     []string
}

func NewFilter(blockResources, blockHosts, allowHosts []string) *Filter {
	resources := make(map[string]bool, len(blockResources))
	for _, t := range blockResources {
		resources[strings.ToLower(strings.TrimSpace(t))] = true
	}

	return &Filter{
		resources: resources,
		hosts:     normalizeHosts(blockHosts),
		allow:     normalizeHosts(allowHosts),
	}
}

func normalizeHosts(hosts []string) []string {
	result := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			result = append(result, h)
		}
	}

	return result
}

// ShouldBlock reports whether a request for the given resource type and host is blocked.
// Allowed hosts are never blocked; documents are only blocked by host.
func (f *Filter) ShouldBlock(resourceType, host string) bool {
	if f == nil {
		return false
	}

	host = strings.ToLower(host)
	if matchesAnyHost(host, f.allow) {
		return false
	}

	if matchesAnyHost(host, f.hosts) {
		return true
	}

	return f.blocksResource(resourceType)
}

func (f *Filter) blocksResource(resourceType string) bool {
	// Map resource types to our config names.
	switch lower := strings.ToLower(resourceType); lower {
	case "document":
		return false
	case "image":
		return f.resources["images"]
	case "font":
		return f.resources["fonts"]
	case "media":
		return f.resources["media"]
	case "stylesheet":
		return f.resources["stylesheets"]
	case "script":
		return f.resources["scripts"]
	default:
		return f.resources[lower]
	}
}

func matchesAnyHost(host string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}

	return false
}
