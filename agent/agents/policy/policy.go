package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
)

// Agent resolves the region for a request and selects the policies that apply.
type Agent struct {
	store   contractx.RecordStore
	toggles togglex.Reader
	timeout time.Duration
}

func New(store contractx.RecordStore, toggles togglex.Reader, timeout time.Duration) (*Agent, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if toggles == nil {
		return nil, errors.New("toggle reader is required")
	}
	return &Agent{store: store, toggles: toggles, timeout: timeout}, nil
}

// Process derives the region from order (nil means no order on file) and applies drift selection.
func (a *Agent) Process(ctx context.Context, userQuery, userID string, order *contractx.Order) (contractx.PolicyOutput, error) {
	region := RegionFor(order)
	if order == nil {
		log.Debug().Str("user_id", userID).Msg("no order on file, using default region")
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	candidates, err := a.store.GetPoliciesByRegion(callCtx, userQuery, region)
	if err != nil {
		if errors.Is(err, contractx.ErrStoreQuery) {
			return contractx.PolicyOutput{}, fmt.Errorf("fetch policies region=%s: %w", region, err)
		}
		return contractx.PolicyOutput{}, fmt.Errorf("%w: fetch policies region=%s: %v", contractx.ErrStoreQuery, region, err)
	}

	forceOld := a.toggles.Snapshot(ctx).PolicyForceOldVersion
	selected := SelectPolicies(candidates, forceOld)
	if forceOld && len(selected) > 0 && selected[0].Expired() {
		log.Warn().
			Str("user_id", userID).
			Str("region", string(region)).
			Str("version", selected[0].Version).
			Msg("forcing expired policy version")
	}

	return contractx.PolicyOutput{Region: region, Policies: selected}, nil
}

// RegionFor maps the order's shipping country onto a policy region.
func RegionFor(order *contractx.Order) contractx.Region {
	if order == nil {
		return contractx.RegionUS
	}
	switch strings.ToUpper(strings.TrimSpace(order.ShippingAddress.Country)) {
	case "US", "USA", "UNITED STATES":
		return contractx.RegionUS
	default:
		return contractx.RegionEU
	}
}

// SelectPolicies applies drift selection to candidates without mutating them.
//
// With forceOld set and at least one expired policy present, only expired
// policies are returned, newest effective-from first. Otherwise current
// policies are returned oldest first; when the region has no current policy
// the full candidate set is used.
func SelectPolicies(candidates []contractx.Policy, forceOld bool) []contractx.Policy {
	var expired, current []contractx.Policy
	for _, p := range candidates {
		if p.Expired() {
			expired = append(expired, p)
		} else {
			current = append(current, p)
		}
	}

	if forceOld && len(expired) > 0 {
		sort.SliceStable(expired, func(i, j int) bool {
			return expired[i].EffectiveFrom.After(expired[j].EffectiveFrom)
		})
		return expired
	}

	out := current
	if len(out) == 0 {
		out = append([]contractx.Policy{}, candidates...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
	})
	if out == nil {
		out = []contractx.Policy{}
	}
	return out
}
