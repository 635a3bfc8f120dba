package toggle

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Toggles are the scenario flags read at stage entry.
type Toggles struct {
	PolicyForceOldVersion bool
	RefundAPIErrorRate    float64
	// FabricatedOrderStatus maps a user id to the status the order explainer reports instead of the real one.
	FabricatedOrderStatus map[string]string
}

func (t Toggles) Clone() Toggles {
	out := t
	out.FabricatedOrderStatus = maps.Clone(t.FabricatedOrderStatus)
	return out
}

// FabricatedStatus returns the injected order status for userID, if any.
func (t Toggles) FabricatedStatus(userID string) (string, bool) {
	status, ok := t.FabricatedOrderStatus[userID]
	if !ok || strings.TrimSpace(status) == "" {
		return "", false
	}
	return status, true
}

// Reader hands out a fresh snapshot per call; stages must not cache it across invocations.
type Reader interface {
	Snapshot(ctx context.Context) Toggles
}

type Config struct {
	PolicyForceOldVersion bool              `split_words:"true" default:"false"`
	RefundAPIErrorRate    float64           `split_words:"true" default:"0"`
	FabricatedOrderStatus map[string]string `split_words:"true" default:"user_007:delivered"`
	RedisURL              string            `split_words:"true"`
	RedisKey              string            `split_words:"true" default:"opsdesk:toggles"`
}

func (c Config) Toggles() Toggles {
	return Toggles{
		PolicyForceOldVersion: c.PolicyForceOldVersion,
		RefundAPIErrorRate:    c.RefundAPIErrorRate,
		FabricatedOrderStatus: maps.Clone(c.FabricatedOrderStatus),
	}
}

// Store is an in-process toggle set, safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	toggles Toggles
}

var _ Reader = (*Store)(nil)

func NewStore(initial Toggles) *Store {
	return &Store{toggles: initial.Clone()}
}

func (s *Store) Snapshot(context.Context) Toggles {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toggles.Clone()
}

func (s *Store) Update(fn func(*Toggles)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.toggles)
}

func (s *Store) SetPolicyForceOldVersion(v bool) {
	s.Update(func(t *Toggles) { t.PolicyForceOldVersion = v })
}

func (s *Store) SetRefundAPIErrorRate(rate float64) {
	s.Update(func(t *Toggles) { t.RefundAPIErrorRate = clampRate(rate) })
}

func (s *Store) SetFabricatedOrderStatus(userID, status string) {
	s.Update(func(t *Toggles) {
		if t.FabricatedOrderStatus == nil {
			t.FabricatedOrderStatus = map[string]string{}
		}
		if strings.TrimSpace(status) == "" {
			delete(t.FabricatedOrderStatus, userID)
			return
		}
		t.FabricatedOrderStatus[userID] = status
	})
}

// Named toggles accepted on the command line.
const (
	NameDrift        = "drift"
	NameRefundErrors = "refund_errors"
	NameNoFabricate  = "no_fabrication"
)

// ApplyNamed switches on the named scenario toggles.
func (s *Store) ApplyNamed(names []string) error {
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
		case NameDrift:
			s.SetPolicyForceOldVersion(true)
		case NameRefundErrors:
			s.SetRefundAPIErrorRate(1)
		case NameNoFabricate:
			s.Update(func(t *Toggles) { t.FabricatedOrderStatus = nil })
		default:
			return fmt.Errorf("unknown toggle %q (available: %s, %s, %s)", raw, NameDrift, NameRefundErrors, NameNoFabricate)
		}
	}
	return nil
}

func clampRate(rate float64) float64 {
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	default:
		return rate
	}
}
