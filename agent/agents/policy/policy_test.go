package policy

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
)

type fakePolicyStore struct {
	policies  map[contractx.Region][]contractx.Policy
	err       error
	gotRegion contractx.Region
}

func (f *fakePolicyStore) GetRefundRequests(context.Context, string) ([]contractx.RefundRequest, error) {
	return nil, nil
}
func (f *fakePolicyStore) GetTickets(context.Context, string) ([]contractx.Ticket, error) {
	return nil, nil
}
func (f *fakePolicyStore) GetOrders(context.Context, string, string) ([]contractx.Order, error) {
	return nil, nil
}
func (f *fakePolicyStore) GetPoliciesByRegion(_ context.Context, _ string, region contractx.Region) ([]contractx.Policy, error) {
	f.gotRegion = region
	return f.policies[region], f.err
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func euPolicies() []contractx.Policy {
	until := date(2024, time.July, 31)
	older := date(2019, time.December, 31)
	return []contractx.Policy{
		{ID: "eu_current", Region: contractx.RegionEU, Version: "v24.1", EffectiveFrom: date(2024, time.August, 1)},
		{ID: "eu_ancient", Region: contractx.RegionEU, Version: "v19.0", EffectiveFrom: date(2018, time.January, 1), EffectiveUntil: &older},
		{ID: "eu_previous", Region: contractx.RegionEU, Version: "v23.2", EffectiveFrom: date(2020, time.January, 1), EffectiveUntil: &until},
	}
}

func ids(policies []contractx.Policy) []string {
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.ID)
	}
	return out
}

func TestRegionFor(t *testing.T) {
	t.Parallel()

	cases := map[string]contractx.Region{
		"US":            contractx.RegionUS,
		"usa":           contractx.RegionUS,
		"United States": contractx.RegionUS,
		"UK":            contractx.RegionEU,
		"FR":            contractx.RegionEU,
		"JP":            contractx.RegionEU,
		"":              contractx.RegionEU,
	}
	for country, want := range cases {
		got := RegionFor(&contractx.Order{ShippingAddress: contractx.Address{Country: country}})
		if got != want {
			t.Fatalf("RegionFor(%q) = %s, want %s", country, got, want)
		}
	}
	if RegionFor(nil) != contractx.RegionUS {
		t.Fatal("missing order must default to US")
	}
}

func TestSelectPoliciesDriftReturnsOnlyExpiredNewestFirst(t *testing.T) {
	t.Parallel()

	got := SelectPolicies(euPolicies(), true)
	if want := []string{"eu_previous", "eu_ancient"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("drift selection = %v, want %v", ids(got), want)
	}
}

func TestSelectPoliciesWithoutDriftReturnsCurrent(t *testing.T) {
	t.Parallel()

	got := SelectPolicies(euPolicies(), false)
	if want := []string{"eu_current"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("selection = %v, want %v", ids(got), want)
	}
}

func TestSelectPoliciesDriftWithoutExpiredFallsBackToCurrent(t *testing.T) {
	t.Parallel()

	candidates := []contractx.Policy{
		{ID: "b", EffectiveFrom: date(2024, time.August, 1)},
		{ID: "a", EffectiveFrom: date(2023, time.January, 1)},
	}
	got := SelectPolicies(candidates, true)
	if want := []string{"a", "b"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("selection = %v, want oldest-first %v", ids(got), want)
	}
	if candidates[0].ID != "b" {
		t.Fatal("candidates must not be reordered in place")
	}
}

func TestSelectPoliciesEmpty(t *testing.T) {
	t.Parallel()

	if got := SelectPolicies(nil, true); got == nil || len(got) != 0 {
		t.Fatalf("SelectPolicies(nil) = %v, want empty non-nil", got)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &fakePolicyStore{policies: map[contractx.Region][]contractx.Policy{contractx.RegionEU: euPolicies()}}
	toggles := togglex.NewStore(togglex.Toggles{PolicyForceOldVersion: true})
	agent, err := New(store, toggles, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	order := &contractx.Order{ShippingAddress: contractx.Address{City: "London", Country: "UK"}}
	first, err := agent.Process(context.Background(), "refund my dryer", "user_002", order)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	second, err := agent.Process(context.Background(), "refund my dryer", "user_002", order)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("outputs differ:\n%+v\n%+v", first, second)
	}
	if first.Region != contractx.RegionEU || store.gotRegion != contractx.RegionEU {
		t.Fatalf("region = %s / %s", first.Region, store.gotRegion)
	}
	if !first.Policies[0].Expired() {
		t.Fatal("drift toggle must select expired policies")
	}
}

func TestProcessRereadsTogglesPerInvocation(t *testing.T) {
	t.Parallel()

	store := &fakePolicyStore{policies: map[contractx.Region][]contractx.Policy{contractx.RegionEU: euPolicies()}}
	toggles := togglex.NewStore(togglex.Toggles{})
	agent, _ := New(store, toggles, 0)
	order := &contractx.Order{ShippingAddress: contractx.Address{Country: "DE"}}

	out, _ := agent.Process(context.Background(), "q", "u", order)
	if out.Policies[0].Expired() {
		t.Fatal("expected current policy before toggle flip")
	}

	toggles.SetPolicyForceOldVersion(true)
	out, _ = agent.Process(context.Background(), "q", "u", order)
	if !out.Policies[0].Expired() {
		t.Fatal("expected expired policy after toggle flip")
	}
}

func TestProcessStoreError(t *testing.T) {
	t.Parallel()

	agent, _ := New(&fakePolicyStore{err: errors.New("timeout")}, togglex.NewStore(togglex.Toggles{}), 0)
	if _, err := agent.Process(context.Background(), "q", "u", nil); !errors.Is(err, contractx.ErrStoreQuery) {
		t.Fatalf("expected ErrStoreQuery, got %v", err)
	}
}
