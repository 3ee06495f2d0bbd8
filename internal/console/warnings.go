package console

import (
	"github.com/snehjoshi/replayconsole/internal/types"
)

// warningGroupType returns the warning group m belongs to, or "" when m is not
// a groupable warning.
func warningGroupType(m *types.Message) types.MessageType {
	if m.Level != types.LevelWarn && m.Level != types.LevelError {
		return ""
	}
	switch m.Category {
	case "cookieBlockedPermission", "cookieBlockedTracker", "cookieBlockedAll", "cookieBlockedForeign":
		return types.TypeContentBlockingGroup
	case "cookiePartitionedForeign":
		return types.TypeStorageIsolationGroup
	case "Tracking Protection":
		return types.TypeTrackingProtectionGroup
	case "cookieSameSite":
		return types.TypeCookieSameSiteGroup
	case "CSP":
		return types.TypeCSPGroup
	case "CORS":
		return types.TypeCORSGroup
	}
	return ""
}

// WarningGroupID returns the id of the warning-group header m would be
// collected under, or "" if m is not a groupable warning. Warnings are grouped
// per type and per owning document.
func WarningGroupID(m *types.Message) string {
	if m == nil {
		return ""
	}
	t := warningGroupType(m)
	if t == "" {
		return ""
	}
	return string(t) + "-" + m.InnerWindowID
}

var warningGroupLabels = map[types.MessageType]string{
	types.TypeContentBlockingGroup:    "Some resources were blocked because content blocking is enabled.",
	types.TypeStorageIsolationGroup:   "Partitioned cookie or storage access was provided to some resources.",
	types.TypeTrackingProtectionGroup: "Some resources were blocked by tracking protection.",
	types.TypeCookieSameSiteGroup:     "Some cookies are misusing the \"SameSite\" attribute, so it won't work as expected.",
	types.TypeCSPGroup:                "Content Security Policy warnings",
	types.TypeCORSGroup:               "Cross-Origin Request warnings",
}

// newWarningGroupMessage builds the synthetic header for first's group.
func newWarningGroupMessage(id string, first *types.Message) *types.Message {
	t := warningGroupType(first)
	return &types.Message{
		ID:            id,
		Type:          t,
		Level:         types.LevelWarn,
		Source:        types.SourceConsoleFrontend,
		InnerWindowID: first.InnerWindowID,
		TimeStamp:     first.TimeStamp,
		MessageText:   &types.MessageText{Text: warningGroupLabels[t]},
	}
}

// shouldGroupWarnings reports whether header has reached the size at which its
// members are collapsed under it.
func (s *State) shouldGroupWarnings(header *types.Message) bool {
	if header == nil {
		return false
	}
	return len(s.warningGroups[header.ID]) > 1
}
