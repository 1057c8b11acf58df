package ritual

import "strings"

// LoveType is the emotional theme a ritual expresses.
type LoveType string

const (
	LoveBelong LoveType = "BELONG"
	LoveFire   LoveType = "FIRE"
	LoveSpark  LoveType = "SPARK"
	LoveCare   LoveType = "CARE"
	LoveSelf   LoveType = "SELF"
	LoveBuild  LoveType = "BUILD"
	LoveGrow   LoveType = "GROW"
	LoveBeyond LoveType = "BEYOND"
	LoveGrace  LoveType = "GRACE"
)

// RelationalNeed is a relationship need a ritual addresses.
type RelationalNeed string

const (
	NeedConnection               RelationalNeed = "CONNECTION"
	NeedIntimacy                 RelationalNeed = "INTIMACY"
	NeedUnderstanding            RelationalNeed = "UNDERSTANDING"
	NeedAcceptanceAndForgiveness RelationalNeed = "ACCEPTANCE_AND_FORGIVENESS"
	NeedTrustAndSafety           RelationalNeed = "TRUST_AND_SAFETY"
	NeedSupport                  RelationalNeed = "SUPPORT"
	NeedBalanceAndFairness       RelationalNeed = "BALANCE_AND_FAIRNESS"
	NeedCommunication            RelationalNeed = "COMMUNICATION"
	NeedPlayAndJoy               RelationalNeed = "PLAY_AND_JOY"
	NeedGrowth                   RelationalNeed = "GROWTH"
	NeedGratitude                RelationalNeed = "GRATITUDE_AND_APPRECIATION"
	NeedPresence                 RelationalNeed = "PRESENCE_AND_QUALITY_TIME"
	NeedSpace                    RelationalNeed = "SPACE"
)

// RitualMode says whether a ritual is done alone or as a couple.
type RitualMode string

const (
	ModeSolo     RitualMode = "SOLO"
	ModeTogether RitualMode = "TOGETHER"
)

// RitualTone is the atmosphere of a ritual.
type RitualTone string

const (
	ToneWarm        RitualTone = "WARM"
	TonePlayful     RitualTone = "PLAYFUL"
	ToneIntimate    RitualTone = "INTIMATE"
	ToneReflective  RitualTone = "REFLECTIVE"
	ToneCalm        RitualTone = "CALM"
	ToneAdventurous RitualTone = "ADVENTUROUS"
	ToneEnergetic   RitualTone = "ENERGETIC"
	ToneHealing     RitualTone = "HEALING"
	ToneSacred      RitualTone = "SACRED"
)

// TimeTaken is the duration bucket of a ritual.
type TimeTaken string

const (
	TimeMoment   TimeTaken = "MOMENT"
	TimeShort    TimeTaken = "SHORT"
	TimeMedium   TimeTaken = "MEDIUM"
	TimeLong     TimeTaken = "LONG"
	TimeExtended TimeTaken = "EXTENDED"
	TimeFlexible TimeTaken = "FLEXIBLE"
)

var vocabularies = map[Field][]string{
	FieldLoveTypes: {
		string(LoveBelong), string(LoveFire), string(LoveSpark), string(LoveCare), string(LoveSelf),
		string(LoveBuild), string(LoveGrow), string(LoveBeyond), string(LoveGrace),
	},
	FieldRelationalNeeds: {
		string(NeedConnection), string(NeedIntimacy), string(NeedUnderstanding),
		string(NeedAcceptanceAndForgiveness), string(NeedTrustAndSafety), string(NeedSupport),
		string(NeedBalanceAndFairness), string(NeedCommunication), string(NeedPlayAndJoy),
		string(NeedGrowth), string(NeedGratitude), string(NeedPresence), string(NeedSpace),
	},
	FieldRitualMode: {string(ModeSolo), string(ModeTogether)},
	FieldRitualTones: {
		string(ToneWarm), string(TonePlayful), string(ToneIntimate), string(ToneReflective),
		string(ToneCalm), string(ToneAdventurous), string(ToneEnergetic), string(ToneHealing),
		string(ToneSacred),
	},
	FieldTimeTaken: {
		string(TimeMoment), string(TimeShort), string(TimeMedium), string(TimeLong),
		string(TimeExtended), string(TimeFlexible),
	},
}

// Vocabulary returns the closed set of values allowed for a field, or false
// when the field is free text.
func Vocabulary(f Field) ([]string, bool) {
	values, ok := vocabularies[f]
	if !ok {
		return nil, false
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, true
}

// CanonicalTerm resolves a free-text term to its vocabulary constant. Matching
// ignores case and treats spaces, dashes and "&" like the underscore form, so
// "Play and joy" resolves to PLAY_AND_JOY.
func CanonicalTerm(f Field, term string) (string, bool) {
	values, ok := vocabularies[f]
	if !ok {
		return term, true
	}
	key := canonicalKey(term)
	if key == "" {
		return "", false
	}
	for _, v := range values {
		if v == key {
			return v, true
		}
	}
	return "", false
}

// SplitTerms resolves every term against the field's vocabulary, returning the
// recognized constants in input order (deduplicated) and the rejected inputs.
func SplitTerms(f Field, terms []string) (kept []string, rejected []string) {
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		canonical, ok := CanonicalTerm(f, term)
		if !ok {
			rejected = append(rejected, term)
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		kept = append(kept, canonical)
	}
	return kept, rejected
}

func canonicalKey(term string) string {
	replacer := strings.NewReplacer("&", " AND ", "-", " ", "_", " ")
	fields := strings.Fields(strings.ToUpper(replacer.Replace(term)))
	return strings.Join(fields, "_")
}
