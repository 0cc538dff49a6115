// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/tallywatch/models"
)

// Wire shapes of the authority's JSON files. Field names follow the
// published format; conversion to models happens in toModel methods.

type voteFile struct {
	ElectionDay      string         `json:"valtillfalle"`
	Occasion         string         `json:"rakningstillfalle"`
	ElectionType     string         `json:"valtyp"`
	Test             bool           `json:"test"`
	UpdatedAt        *timestamp     `json:"senasteUppdateringstid"`
	UpdateCount      int            `json:"antalUppdateringar"`
	CountedDistricts int            `json:"antalValdistriktRaknade"`
	TotalDistricts   int            `json:"antalValdistriktSomSkaRaknas"`
	Districts        []districtWire `json:"valdistrikt"`
}

type districtWire struct {
	Name             string            `json:"namn"`
	Type             string            `json:"valdistriktstyp"`
	ReportedAt       string            `json:"rapporteringsTid"`
	TotalVotes       int               `json:"totaltAntalRoster"`
	EligibleVoters   *int              `json:"antalRostberattigade"`
	Turnout          *float64          `json:"valdeltagandeVallokal"`
	Code             string            `json:"valdistriktskod"`
	MunicipalityCode string            `json:"kommunkod"`
	CountyCode       string            `json:"lankod"`
	ConstituencyCode string            `json:"valomradeskod"`
	CircuitCode      string            `json:"kretskod"`
	Distribution     *distributionWire `json:"rostfordelning"`
}

type distributionWire struct {
	Counting struct {
		Votes   int `json:"antalRoster"`
		Parties []struct {
			Label        string `json:"partibeteckning"`
			Abbreviation string `json:"partiforkortning"`
			Code         string `json:"partikod"`
			Votes        int    `json:"antalRoster"`
		} `json:"partiRoster"`
		OtherParties struct {
			Votes int `json:"antalRoster"`
		} `json:"rosterOvrigaPartier"`
	} `json:"rosterPaverkaMandat"`
	NotCounting struct {
		Votes         int       `json:"antalRoster"`
		NotRegistered countWire `json:"rosterEjAnmaltDeltagande"`
		Blank         countWire `json:"blankaRoster"`
		Other         countWire `json:"ovrigaOgiltiga"`
	} `json:"rosterEjPaverkaMandat"`
}

type countWire struct {
	Votes int `json:"antalRoster"`
}

type seatFile struct {
	ElectionDay  string     `json:"valtillfalle"`
	Occasion     string     `json:"rakningstillfalle"`
	ElectionType string     `json:"valtyp"`
	Test         bool       `json:"test"`
	UpdatedAt    timestamp  `json:"senasteUppdateringstid"`
	UpdateCount  int        `json:"antalUppdateringar"`
	Region       regionWire `json:"valomrade"`
}

type regionWire struct {
	Name             string    `json:"namn"`
	Code             string    `json:"kod"`
	ReportedAt       timestamp `json:"rapporteringsTid"`
	CountedDistricts int       `json:"antalValdistriktRaknade"`
	TotalDistricts   int       `json:"antalValdistriktSomSkaRaknas"`
	TotalVotes       int       `json:"totaltAntalRoster"`
	EligibleVoters   int       `json:"antalRostberattigade"`
	Turnout          float64   `json:"valdeltagande"`
	Message          string    `json:"meddelandetext"`
	Seats            *struct {
		Parties []struct {
			Label        string `json:"partibeteckning"`
			Code         string `json:"partikod"`
			Abbreviation string `json:"partiforkortning"`
			Seats        int    `json:"antalMandat"`
			FixedSeats   int    `json:"antalFastaMandat"`
			Adjustment   int    `json:"antalUtjamningsmandat"`
		} `json:"partiLista"`
	} `json:"mandatfordelning"`
}

// timestamp accepts the layouts seen in published files, with or without zone.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", value)
}

func (f voteFile) toModel() models.VoteRecord {
	record := models.VoteRecord{
		ElectionDay:      f.ElectionDay,
		Occasion:         f.Occasion,
		ElectionType:     f.ElectionType,
		Test:             f.Test,
		UpdateCount:      f.UpdateCount,
		CountedDistricts: f.CountedDistricts,
		TotalDistricts:   f.TotalDistricts,
		Districts:        make([]models.District, 0, len(f.Districts)),
	}
	if f.UpdatedAt != nil && !f.UpdatedAt.IsZero() {
		updated := f.UpdatedAt.Time
		record.UpdatedAt = &updated
	}
	for _, d := range f.Districts {
		record.Districts = append(record.Districts, d.toModel())
	}
	return record
}

func (d districtWire) toModel() models.District {
	district := models.District{
		Code:             d.Code,
		Name:             d.Name,
		Type:             d.Type,
		ReportedAt:       d.ReportedAt,
		TotalVotes:       d.TotalVotes,
		EligibleVoters:   d.EligibleVoters,
		Turnout:          d.Turnout,
		MunicipalityCode: d.MunicipalityCode,
		CountyCode:       d.CountyCode,
		ConstituencyCode: d.ConstituencyCode,
		CircuitCode:      d.CircuitCode,
	}
	if d.Distribution != nil {
		dist := &models.VoteDistribution{
			ValidVotes:   d.Distribution.Counting.Votes,
			OtherParties: d.Distribution.Counting.OtherParties.Votes,
			Invalid: models.InvalidVotes{
				Total:         d.Distribution.NotCounting.Votes,
				NotRegistered: d.Distribution.NotCounting.NotRegistered.Votes,
				Blank:         d.Distribution.NotCounting.Blank.Votes,
				Other:         d.Distribution.NotCounting.Other.Votes,
			},
		}
		for _, p := range d.Distribution.Counting.Parties {
			dist.Parties = append(dist.Parties, models.PartyVotes{
				Code:         p.Code,
				Abbreviation: p.Abbreviation,
				Name:         p.Label,
				Votes:        p.Votes,
			})
		}
		district.Distribution = dist
	}
	return district
}

func (f seatFile) toModel() models.SeatRecord {
	region := models.Region{
		Code:             f.Region.Code,
		Name:             f.Region.Name,
		ReportedAt:       f.Region.ReportedAt.Time,
		CountedDistricts: f.Region.CountedDistricts,
		TotalDistricts:   f.Region.TotalDistricts,
		TotalVotes:       f.Region.TotalVotes,
		EligibleVoters:   f.Region.EligibleVoters,
		Turnout:          f.Region.Turnout,
		Message:          f.Region.Message,
	}
	if f.Region.Seats != nil {
		for _, p := range f.Region.Seats.Parties {
			region.SeatAllocation = append(region.SeatAllocation, models.PartySeats{
				Code:         p.Code,
				Abbreviation: p.Abbreviation,
				Name:         p.Label,
				Seats:        p.Seats,
				FixedSeats:   p.FixedSeats,
				Adjustment:   p.Adjustment,
			})
		}
	}
	return models.SeatRecord{
		ElectionDay:  f.ElectionDay,
		Occasion:     f.Occasion,
		ElectionType: f.ElectionType,
		Test:         f.Test,
		UpdatedAt:    f.UpdatedAt.Time,
		UpdateCount:  f.UpdateCount,
		Region:       region,
	}
}
