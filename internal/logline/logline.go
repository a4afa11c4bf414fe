// Package logline classifies raw combat log lines.
//
// Classification is stateless: every line is matched against a fixed set of
// patterns in priority order and the captured fields are returned as strings.
// Turning those strings into events is the job of the parser package.
package logline

import (
	"regexp"
	"strings"
)

// Category identifies what kind of log line was seen.
type Category uint8

const (
	Unrecognized Category = iota
	CharacterLogin
	ZoneTransition
	IgnoredZone
	CorpseSearch
	DamageReport
	WisdomAward
)

func (c Category) String() string {
	switch c {
	case CharacterLogin:
		return "character_login"
	case ZoneTransition:
		return "zone_transition"
	case IgnoredZone:
		return "ignored_zone"
	case CorpseSearch:
		return "corpse_search"
	case DamageReport:
		return "damage_report"
	case WisdomAward:
		return "wisdom_award"
	default:
		return "unrecognized"
	}
}

// Line holds the fields captured from one log line.
// Only the fields relevant to Category are set.
type Line struct {
	Category Category

	// Time is the HH:MM:SS prefix, when the line has one.
	Time string

	Character string
	Zone      string

	TargetID   string
	TargetName string

	Player string
	Health string
	Armor  string
	Aggro  string

	Wisdom string
}

var (
	reTimestamp = regexp.MustCompile(`^\[(?P<ts>\d{2}:\d{2}:\d{2})\]`)

	reLogin = regexp.MustCompile(`Vivox - LoginAsync\((?P<char>\w+)\)`)

	reZonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\[(?P<ts>\d{2}:\d{2}:\d{2})\].*LOADING LEVEL (?P<zone>Area\w+)`),
		regexp.MustCompile(`^\[(?P<ts>\d{2}:\d{2}:\d{2})\].*Initializing area!.*:\s*(?P<zone>Area\w+)`),
		regexp.MustCompile(`^\[(?P<ts>\d{2}:\d{2}:\d{2})\].*C_INIT2 for (?P<zone>Area\w+)`),
	}

	reCorpse = regexp.MustCompile(`ProcessTalkScreen\((?P<id>\d+),\s*Search Corpse of (?P<name>[^,]+),`)

	reDamage = regexp.MustCompile(`^(?:\[\d{2}:\d{2}:\d{2}\]\s*)?(?P<player>[^:]+):\s*(?:(?P<health>\d+)\s+health\s+dmg)?\s*(?:(?P<armor>\d+)\s+armor\s+dmg)?(?:.*?Aggro\s*\(at death\):\s*(?P<aggro>[\d.]+)%)?`)

	reWisdom = regexp.MustCompile(`You earned (?P<amt>\d+) Combat Wisdom`)
)

// excludedZones are loading screens that never count as a zone visit.
var excludedZones = map[string]struct{}{
	"ChooseCharacter":   {},
	"ReconnectToServer": {},
	"LoadingScene":      {},
}

// Excluded reports whether zone is a loading screen rather than a real zone.
func Excluded(zone string) bool {
	_, ok := excludedZones[zone]
	return ok
}

// Classify returns the first matching category for line.
// It never panics; anything it cannot match is Unrecognized.
func Classify(line string) Line {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Line{}
	}

	if m := reLogin.FindStringSubmatchIndex(line); m != nil {
		return Line{
			Category:  CharacterLogin,
			Time:      timestamp(line),
			Character: reSub(line, m, reLogin.SubexpIndex("char")),
		}
	}

	ignored := ""
	for _, re := range reZonePatterns {
		m := re.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		zone := reSub(line, m, re.SubexpIndex("zone"))
		if Excluded(zone) {
			ignored = zone
			continue
		}
		return Line{
			Category: ZoneTransition,
			Time:     reSub(line, m, re.SubexpIndex("ts")),
			Zone:     zone,
		}
	}
	if ignored != "" {
		return Line{Category: IgnoredZone, Time: timestamp(line), Zone: ignored}
	}

	if m := reCorpse.FindStringSubmatchIndex(line); m != nil {
		return Line{
			Category:   CorpseSearch,
			Time:       timestamp(line),
			TargetID:   reSub(line, m, reCorpse.SubexpIndex("id")),
			TargetName: strings.TrimSpace(reSub(line, m, reCorpse.SubexpIndex("name"))),
		}
	}

	if m := reDamage.FindStringSubmatchIndex(line); m != nil {
		health := reSub(line, m, reDamage.SubexpIndex("health"))
		armor := reSub(line, m, reDamage.SubexpIndex("armor"))
		aggro := reSub(line, m, reDamage.SubexpIndex("aggro"))
		player := strings.TrimSpace(reSub(line, m, reDamage.SubexpIndex("player")))
		if player != "" && (health != "" || armor != "" || aggro != "") {
			return Line{
				Category: DamageReport,
				Time:     timestamp(line),
				Player:   player,
				Health:   health,
				Armor:    armor,
				Aggro:    aggro,
			}
		}
	}

	if m := reWisdom.FindStringSubmatchIndex(line); m != nil {
		return Line{
			Category: WisdomAward,
			Time:     timestamp(line),
			Wisdom:   reSub(line, m, reWisdom.SubexpIndex("amt")),
		}
	}

	return Line{Time: timestamp(line)}
}

func timestamp(line string) string {
	m := reTimestamp.FindStringSubmatchIndex(line)
	if m == nil {
		return ""
	}
	return reSub(line, m, 1)
}

func reSub(s string, idx []int, group int) string {
	if group <= 0 || group*2+1 >= len(idx) {
		return ""
	}
	start := idx[group*2]
	end := idx[group*2+1]
	if start < 0 || end < 0 {
		return ""
	}
	return s[start:end]
}
