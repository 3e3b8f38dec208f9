package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// CurrentConfigVersion is stamped on every config snapshot taken at creation.
const CurrentConfigVersion = 1

// RewardTier is the explicit reward for one final rank.
type RewardTier struct {
	Rank    int `json:"rank" mapstructure:"rank"`
	Credits int `json:"credits" mapstructure:"credits"`
	BonusXP int `json:"bonus_xp" mapstructure:"bonus_xp"`
}

// RewardTable maps ranks to credits and XP. Ranks without a tier get participation rewards.
type RewardTable struct {
	Tiers                []RewardTier `json:"tiers" mapstructure:"tiers"`
	ParticipationCredits int          `json:"participation_credits" mapstructure:"participation_credits"`
	BaseXP               int          `json:"base_xp" mapstructure:"base_xp"`
}

// TierFor returns the explicit tier for rank, if any.
func (t RewardTable) TierFor(rank int) (RewardTier, bool) {
	for _, tier := range t.Tiers {
		if tier.Rank == rank {
			return tier, true
		}
	}
	return RewardTier{}, false
}

// SkillBand applies Multiplier to every participant whose rank/N is <= UpToFraction.
type SkillBand struct {
	UpToFraction float64 `json:"up_to_fraction" mapstructure:"up_to_fraction"`
	Multiplier   float64 `json:"multiplier" mapstructure:"multiplier"`
}

// PointsRule is the standings table for a single match outcome.
type PointsRule struct {
	Win  int `json:"win" mapstructure:"win"`
	Draw int `json:"draw" mapstructure:"draw"`
	Loss int `json:"loss" mapstructure:"loss"`
}

// CompetitionConfig is the versioned reward/skill/format document stored with a competition.
// It is copied from engine defaults at creation so later default changes never alter
// historical competitions.
type CompetitionConfig struct {
	Version int `json:"version" mapstructure:"version"`

	SkillsTested    []string           `json:"skills_tested" mapstructure:"skills_tested"`
	SkillWeights    map[string]float64 `json:"skill_weights" mapstructure:"skill_weights"`
	SkillBasePoints float64            `json:"skill_base_points" mapstructure:"skill_base_points"`
	SkillBands      []SkillBand        `json:"skill_bands" mapstructure:"skill_bands"`

	RewardTable RewardTable `json:"reward_table" mapstructure:"reward_table"`
	Points      PointsRule  `json:"points" mapstructure:"points"`

	ThirdPlacePlayoff  bool  `json:"third_place_playoff" mapstructure:"third_place_playoff"`
	Legs               int   `json:"legs" mapstructure:"legs"`
	GroupCount         int   `json:"group_count" mapstructure:"group_count"`
	QualifiersPerGroup int   `json:"qualifiers_per_group" mapstructure:"qualifiers_per_group"`
	SwissRounds        int   `json:"swiss_rounds" mapstructure:"swiss_rounds"`
	Seed               int64 `json:"seed" mapstructure:"seed"`
}

// DefaultCompetitionConfig returns the built-in engine defaults.
func DefaultCompetitionConfig() CompetitionConfig {
	return CompetitionConfig{
		Version:      CurrentConfigVersion,
		SkillsTested: []string{"technique", "tactics", "stamina"},
		SkillWeights: map[string]float64{
			"technique": 1.0,
			"tactics":   0.8,
			"stamina":   0.6,
		},
		SkillBasePoints: 10,
		SkillBands: []SkillBand{
			{UpToFraction: 0.25, Multiplier: 1.5},
			{UpToFraction: 0.50, Multiplier: 1.0},
			{UpToFraction: 0.75, Multiplier: 0.5},
			{UpToFraction: 1.00, Multiplier: -0.5},
		},
		RewardTable: RewardTable{
			Tiers: []RewardTier{
				{Rank: 1, Credits: 500, BonusXP: 100},
				{Rank: 2, Credits: 300, BonusXP: 75},
				{Rank: 3, Credits: 200, BonusXP: 50},
			},
			ParticipationCredits: 50,
			BaseXP:               25,
		},
		Points:             PointsRule{Win: 3, Draw: 1, Loss: 0},
		ThirdPlacePlayoff:  true,
		Legs:               1,
		QualifiersPerGroup: 2,
	}
}

// Clone returns a deep copy so snapshots never share maps or slices.
func (c CompetitionConfig) Clone() CompetitionConfig {
	out := c
	out.SkillsTested = append([]string(nil), c.SkillsTested...)
	out.SkillBands = append([]SkillBand(nil), c.SkillBands...)
	out.RewardTable.Tiers = append([]RewardTier(nil), c.RewardTable.Tiers...)
	if c.SkillWeights != nil {
		out.SkillWeights = make(map[string]float64, len(c.SkillWeights))
		for k, v := range c.SkillWeights {
			out.SkillWeights[k] = v
		}
	}
	return out
}

// Validate checks the document is internally consistent.
func (c CompetitionConfig) Validate() error {
	if c.Version <= 0 {
		return errors.New("config version must be positive")
	}
	for _, skill := range c.SkillsTested {
		w, ok := c.SkillWeights[skill]
		if !ok {
			return fmt.Errorf("skill %q has no weight", skill)
		}
		if w <= 0 || math.IsNaN(w) {
			return fmt.Errorf("skill %q weight must be positive, got %v", skill, w)
		}
	}
	if len(c.SkillsTested) > 0 && len(c.SkillBands) == 0 {
		return errors.New("skill bands are required when skills are tested")
	}
	bands := append([]SkillBand(nil), c.SkillBands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].UpToFraction < bands[j].UpToFraction })
	if len(bands) > 0 && bands[len(bands)-1].UpToFraction < 1 {
		return errors.New("skill bands must cover the whole field (last band up_to_fraction must be 1)")
	}
	seen := make(map[int]bool, len(c.RewardTable.Tiers))
	for _, tier := range c.RewardTable.Tiers {
		if tier.Rank <= 0 {
			return fmt.Errorf("reward tier rank must be positive, got %d", tier.Rank)
		}
		if seen[tier.Rank] {
			return fmt.Errorf("duplicate reward tier for rank %d", tier.Rank)
		}
		seen[tier.Rank] = true
	}
	if c.Legs != 0 && c.Legs != 1 && c.Legs != 2 {
		return fmt.Errorf("legs must be 1 or 2, got %d", c.Legs)
	}
	if c.GroupCount < 0 || c.QualifiersPerGroup < 0 || c.SwissRounds < 0 {
		return errors.New("group count, qualifiers per group and swiss rounds must not be negative")
	}
	return nil
}

// BandMultiplier returns the skill multiplier for a resolved rank in a field of n.
func (c CompetitionConfig) BandMultiplier(rank, n int) float64 {
	if n <= 0 || len(c.SkillBands) == 0 {
		return 0
	}
	bands := append([]SkillBand(nil), c.SkillBands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].UpToFraction < bands[j].UpToFraction })
	fraction := float64(rank) / float64(n)
	for _, b := range bands {
		if fraction <= b.UpToFraction+1e-9 {
			return b.Multiplier
		}
	}
	return bands[len(bands)-1].Multiplier
}

// Value encodes as text; lib/pq would send []byte as bytea.
func (c CompetitionConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *CompetitionConfig) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = CompetitionConfig{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into CompetitionConfig", src)
	}
}
