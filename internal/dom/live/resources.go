package live

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources fails requests whose resource type is listed in kinds.
func blockResources(page *rod.Page, kinds []string) {
	blocked := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		blocked[strings.ToLower(strings.TrimSpace(k))] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

// shouldBlock maps CDP resource types onto the plural names used in config.
func shouldBlock(blocked map[string]bool, resType string) bool {
	t := strings.ToLower(resType)
	switch t {
	case "image":
		return blocked["images"]
	case "font":
		return blocked["fonts"]
	case "stylesheet":
		return blocked["stylesheets"]
	case "media":
		return blocked["media"]
	}
	return blocked[t]
}
