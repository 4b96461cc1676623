package domain

import (
	"encoding/json"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier enumerates the closed set of billing tiers.
type Tier string

const (
	TierFounder      Tier = "founder"
	TierTimeMaster   Tier = "time_master"
	TierSparkPartner Tier = "spark_partner"
)

// Limit is the quota ceiling of a tier: either a bounded unit count or
// unbounded. Unbounded is serialized as JSON null, never as a float sentinel.
type Limit struct {
	n         int
	unbounded bool
}

// Bounded returns a limit of n units.
func Bounded(n int) Limit {
	return Limit{n: n}
}

// Unbounded returns a limit that never exhausts.
func Unbounded() Limit {
	return Limit{unbounded: true}
}

// IsUnbounded reports whether the limit never exhausts.
func (l Limit) IsUnbounded() bool {
	return l.unbounded
}

// N returns the bounded unit count. It is meaningless for unbounded limits.
func (l Limit) N() int {
	return l.n
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unbounded {
		return []byte("null"), nil
	}
	return json.Marshal(l.n)
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unbounded()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = Bounded(n)
	return nil
}

// TierConfig carries the per-tier quota plan.
type TierConfig struct {
	DisplayName string
	MaxUnits    Limit
	Color       string
}

var tierConfigs = map[Tier]TierConfig{
	TierFounder:      {DisplayName: titleCase("founder"), MaxUnits: Unbounded(), Color: "#FF6B6B"},
	TierTimeMaster:   {DisplayName: titleCase("time master"), MaxUnits: Bounded(100), Color: "#4A90E2"},
	TierSparkPartner: {DisplayName: titleCase("spark partner"), MaxUnits: Bounded(7), Color: "#7ED321"},
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// ParseTier validates a tier name against the closed set.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierConfigs[t]; !ok {
		return "", ErrInvalidTier
	}
	return t, nil
}

// ConfigForTier returns the quota plan for a tier. Unknown or unassigned
// tiers fall back to the most restrictive plan.
func ConfigForTier(t Tier) TierConfig {
	if cfg, ok := tierConfigs[t]; ok {
		return cfg
	}
	return tierConfigs[TierSparkPartner]
}

// Tiers lists the closed set in a stable order.
func Tiers() []Tier {
	return []Tier{TierFounder, TierTimeMaster, TierSparkPartner}
}
