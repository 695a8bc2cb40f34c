package meta

import (
	"time"

	"github.com/firefly-zero/firefly-cli/rom"
)

const (
	StatsMagic  = "FFST"
	StatsSchema = 1

	// ScoreSlots is the number of own and friend scores kept per board.
	ScoreSlots = 8
	// MaxXP caps the experience an app can grant.
	MaxXP = 1000
)

// Date is a calendar day. Month and Day count from zero.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

// DateOf returns the local calendar day of t.
func DateOf(t time.Time) Date {
	return Date{Year: uint16(t.Year()), Month: uint8(t.Month() - 1), Day: uint8(t.Day() - 1)}
}

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func laterOf(ds ...Date) Date {
	var out Date
	for _, d := range ds {
		if out.Before(d) {
			out = d
		}
	}
	return out
}

// BadgeProgress tracks one badge of the app.
type BadgeProgress struct {
	// New is set when the badge was earned but not yet shown.
	New  bool
	Done uint16
	Goal uint16
}

// FriendScore is a score of the friend at Index.
type FriendScore struct {
	Index uint16
	Score int16
}

// BoardScores are the best scores on one board.
type BoardScores struct {
	Me      [ScoreSlots]int16
	Friends [ScoreSlots]FriendScore
}

// Stats is the per-app play record kept in data/<author>/<app>/stats.
//
// The ROM carries a default copy in _stats with zero dates and counters;
// installing seeds or updates the record from it.
type Stats struct {
	// Minutes, LongestPlay and Launches are bucketed by player count.
	Minutes     [4]uint32
	LongestPlay [4]uint32
	Launches    [4]uint32
	InstalledOn Date
	UpdatedOn   Date
	LaunchedOn  Date
	XP          uint16
	Badges      []BadgeProgress
	Scores      []BoardScores
}

// DefaultStats is the record of an app that was never played.
func DefaultStats(badges Badges, boards int) Stats {
	s := Stats{}
	for _, b := range badges {
		s.Badges = append(s.Badges, BadgeProgress{Goal: b.Steps})
	}
	if boards > 0 {
		s.Scores = make([]BoardScores, boards)
	}
	return s
}

func (s *Stats) validate() error {
	if len(s.Badges) > MaxBadges {
		return rom.Errorf(rom.KindSchemaViolation, "badges", "%d badges, at most %d allowed", len(s.Badges), MaxBadges)
	}
	if len(s.Scores) > MaxBoards {
		return rom.Errorf(rom.KindSchemaViolation, "scores", "%d boards, at most %d allowed", len(s.Scores), MaxBoards)
	}
	if s.XP > MaxXP {
		return rom.Errorf(rom.KindSchemaViolation, "xp", "%d exceeds %d", s.XP, MaxXP)
	}
	for _, d := range []Date{s.InstalledOn, s.UpdatedOn, s.LaunchedOn} {
		if d.Month > 11 || d.Day > 30 {
			return rom.Errorf(rom.KindSchemaViolation, "date", "invalid date %d-%d-%d", d.Year, d.Month, d.Day)
		}
	}
	for i, b := range s.Badges {
		if b.Goal == 0 {
			return rom.Errorf(rom.KindSchemaViolation, badgeField(i), "goal must not be zero")
		}
		if b.Done > b.Goal {
			return rom.Errorf(rom.KindSchemaViolation, badgeField(i), "done %d exceeds goal %d", b.Done, b.Goal)
		}
	}
	return nil
}

// EncodeStats serializes s.
func EncodeStats(s Stats) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	e := &encoder{}
	e.raw([]byte(StatsMagic))
	e.u8(StatsSchema)
	e.zeros(3)
	for _, arr := range [][4]uint32{s.Minutes, s.LongestPlay, s.Launches} {
		for _, v := range arr {
			e.u32(v)
		}
	}
	for _, d := range []Date{s.InstalledOn, s.UpdatedOn, s.LaunchedOn} {
		e.u16(d.Year)
		e.u8(d.Month)
		e.u8(d.Day)
	}
	e.u16(s.XP)
	e.u16(uint16(len(s.Badges)))
	for _, b := range s.Badges {
		if b.New {
			e.u8(1)
		} else {
			e.u8(0)
		}
		e.zeros(1)
		e.u16(b.Done)
		e.u16(b.Goal)
	}
	e.u8(uint8(len(s.Scores)))
	for _, sc := range s.Scores {
		for _, v := range sc.Me {
			e.i16(v)
		}
		for _, f := range sc.Friends {
			e.u16(f.Index)
			e.i16(f.Score)
		}
	}
	return e.bytes(), nil
}

// DecodeStats parses the output of EncodeStats.
func DecodeStats(raw []byte) (Stats, error) {
	d := &decoder{b: raw}
	d.magic(StatsMagic)
	d.schema(StatsSchema)
	d.zeros("reserved", 3)

	var s Stats
	for _, arr := range []*[4]uint32{&s.Minutes, &s.LongestPlay, &s.Launches} {
		for i := range arr {
			arr[i] = d.u32("counters")
		}
	}
	for _, dt := range []*Date{&s.InstalledOn, &s.UpdatedOn, &s.LaunchedOn} {
		dt.Year = d.u16("date")
		dt.Month = d.u8("date")
		dt.Day = d.u8("date")
	}
	s.XP = d.u16("xp")
	if n := int(d.u16("badges")); n > 0 {
		for i := 0; i < n && d.err == nil; i++ {
			var b BadgeProgress
			switch d.u8(badgeField(i)) {
			case 0:
			case 1:
				b.New = true
			default:
				d.fail(badgeField(i), "new must be 0 or 1")
			}
			d.zeros(badgeField(i), 1)
			b.Done = d.u16(badgeField(i))
			b.Goal = d.u16(badgeField(i))
			s.Badges = append(s.Badges, b)
		}
	}
	if n := int(d.u8("scores")); n > 0 {
		for i := 0; i < n && d.err == nil; i++ {
			var sc BoardScores
			for j := range sc.Me {
				sc.Me[j] = d.i16("scores")
			}
			for j := range sc.Friends {
				sc.Friends[j].Index = d.u16("scores")
				sc.Friends[j].Score = d.i16("scores")
			}
			s.Scores = append(s.Scores, sc)
		}
	}
	if err := d.finish(); err != nil {
		return Stats{}, err
	}
	if err := s.validate(); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// SeedStats starts the record of a freshly installed app from the ROM
// defaults.
func SeedStats(defaults Stats, today Date) Stats {
	return Stats{
		InstalledOn: today,
		UpdatedOn:   today,
		Badges:      append([]BadgeProgress(nil), defaults.Badges...),
		Scores:      append([]BoardScores(nil), defaults.Scores...),
	}
}

// MergeStats updates the record of a reinstalled app. Play counters and
// dates survive; badges and boards follow the new defaults, keeping the
// progress and scores of the ones that still exist.
//
// today is raised to the latest date already recorded, since the device
// clock may be ahead of the host.
func MergeStats(old, defaults Stats, today Date) Stats {
	today = laterOf(today, old.InstalledOn, old.LaunchedOn, old.UpdatedOn)
	out := Stats{
		Minutes:     old.Minutes,
		LongestPlay: old.LongestPlay,
		Launches:    old.Launches,
		InstalledOn: old.InstalledOn,
		UpdatedOn:   today,
		LaunchedOn:  old.LaunchedOn,
		XP:          min(old.XP, MaxXP),
	}
	for i, def := range defaults.Badges {
		b := BadgeProgress{Goal: def.Goal}
		if i < len(old.Badges) {
			b.New = old.Badges[i].New
			b.Done = min(old.Badges[i].Done, def.Goal)
		}
		out.Badges = append(out.Badges, b)
	}
	for i := range defaults.Scores {
		var sc BoardScores
		if i < len(old.Scores) {
			sc = old.Scores[i]
		}
		out.Scores = append(out.Scores, sc)
	}
	return out
}
