package profiler

import (
	"strings"

	"github.com/pathsight/pathsight/pkg/types"
)

// Fixed names in the push funnel and install lifecycle. These are matched by
// name rather than category because deployments rarely configure the full
// push funnel as session boundary markers.
const (
	pushSent      = "Push Sent"
	pushDelivered = "Push Delivered"
	pushClick     = "Push Click"
	pushFailure   = "Push Failure"

	appInstalled   = "App Installed"
	appUninstalled = "App Uninstalled"
)

// systemEventStats summarizes lifecycle activity: counts of the configured
// boundary markers, plus push funnel rates and install churn when those
// events appear in the stream.
func systemEventStats(events []types.Event) types.SystemEventStats {
	markers := make(map[string]int64)
	names := make(map[string]int64)
	for i := range events {
		names[events[i].Name]++
		if events[i].IsSystem() {
			markers[events[i].Name]++
		}
	}
	return types.SystemEventStats{
		Counts:    markers,
		Push:      pushStats(names),
		Lifecycle: lifecycleStats(names),
	}
}

// pushStats derives funnel rates from push event counts. Click rate is
// measured against deliveries, not sends; rates stay zero until at least one
// send is observed.
func pushStats(names map[string]int64) *types.PushStats {
	breakdown := make(map[string]int64)
	for name, c := range names {
		if strings.Contains(name, "Push") {
			breakdown[name] = c
		}
	}
	if len(breakdown) == 0 {
		return nil
	}

	ps := &types.PushStats{
		TotalSent: breakdown[pushSent],
		Breakdown: breakdown,
	}
	if ps.TotalSent > 0 {
		delivered := breakdown[pushDelivered]
		ps.DeliveryRate = float64(delivered) / float64(ps.TotalSent)
		if delivered > 0 {
			ps.ClickRate = float64(breakdown[pushClick]) / float64(delivered)
		}
		ps.FailureRate = float64(breakdown[pushFailure]) / float64(ps.TotalSent)
	}
	return ps
}

// lifecycleStats reports install churn when any lifecycle event is present.
func lifecycleStats(names map[string]int64) *types.LifecycleStats {
	installs := names[appInstalled]
	uninstalls := names[appUninstalled]
	if installs == 0 && uninstalls == 0 {
		return nil
	}
	ls := &types.LifecycleStats{Installs: installs, Uninstalls: uninstalls}
	if installs > 0 {
		ls.ChurnRate = float64(uninstalls) / float64(installs)
	}
	return ls
}
