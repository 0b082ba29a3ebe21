package aggregator

import (
	"strings"

	"travelmcp/internal/domain"
)

// Namespace derives the public name of tool exposed by service: the server
// suffix is dropped and the remainder joined to the tool name.
func Namespace(service, tool string) string {
	base := strings.TrimSuffix(service, domain.ServerSuffix)
	if base == "" {
		base = service
	}
	return base + domain.NamespaceSeparator + tool
}
