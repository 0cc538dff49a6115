package models

import "time"

// Counting occasion constants
const (
	OccasionPreliminary = "preliminär"
	OccasionFinal       = "slutlig"
)

// Election type constants
const (
	ElectionRiksdag   = "RD"
	ElectionRegion    = "RF"
	ElectionMunicipal = "KF"
)

// DistrictTypeCollection marks a district whose votes are counted centrally
const DistrictTypeCollection = "uppsamlingsdistrikt"

// Manifest types

type ManifestEntry struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

// Record types

// PartyVotes is one party's line in a district or region vote distribution.
type PartyVotes struct {
	Code         string `json:"code"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Votes        int    `json:"votes"`
}

type InvalidVotes struct {
	Total         int `json:"total"`
	NotRegistered int `json:"not_registered"`
	Blank         int `json:"blank"`
	Other         int `json:"other"`
}

// VoteDistribution is absent on districts that have not reported yet.
type VoteDistribution struct {
	ValidVotes   int          `json:"valid_votes"`
	Parties      []PartyVotes `json:"parties"`
	OtherParties int          `json:"other_parties"`
	Invalid      InvalidVotes `json:"invalid"`
}

type District struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	ReportedAt       string            `json:"reported_at,omitempty"`
	TotalVotes       int               `json:"total_votes"`
	EligibleVoters   *int              `json:"eligible_voters,omitempty"`
	Turnout          *float64          `json:"turnout,omitempty"`
	MunicipalityCode string            `json:"municipality_code"`
	CountyCode       string            `json:"county_code"`
	ConstituencyCode string            `json:"constituency_code"`
	CircuitCode      string            `json:"circuit_code"`
	Distribution     *VoteDistribution `json:"distribution,omitempty"`
}

// Reported reports whether the district has a reporting timestamp.
func (d District) Reported() bool {
	return d.ReportedAt != ""
}

type PartySeats struct {
	Code         string `json:"code"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	Seats        int    `json:"seats"`
	FixedSeats   int    `json:"fixed_seats"`
	Adjustment   int    `json:"adjustment_seats"`
}

// Region is the district descriptor of a bundle: the area the seats record covers.
type Region struct {
	Code             string       `json:"code"`
	Name             string       `json:"name"`
	ReportedAt       time.Time    `json:"reported_at"`
	CountedDistricts int          `json:"counted_districts"`
	TotalDistricts   int          `json:"total_districts"`
	TotalVotes       int          `json:"total_votes"`
	EligibleVoters   int          `json:"eligible_voters"`
	Turnout          float64      `json:"turnout"`
	Message          string       `json:"message,omitempty"`
	SeatAllocation   []PartySeats `json:"seat_allocation,omitempty"`
}

type VoteRecord struct {
	ElectionDay      string     `json:"election_day"`
	Occasion         string     `json:"occasion"`
	ElectionType     string     `json:"election_type"`
	Test             bool       `json:"test"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	UpdateCount      int        `json:"update_count"`
	CountedDistricts int        `json:"counted_districts"`
	TotalDistricts   int        `json:"total_districts"`
	Districts        []District `json:"districts"`
}

type SeatRecord struct {
	ElectionDay  string    `json:"election_day"`
	Occasion     string    `json:"occasion"`
	ElectionType string    `json:"election_type"`
	Test         bool      `json:"test"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdateCount  int       `json:"update_count"`
	Region       Region    `json:"region"`
}

// Key identifies the seats record for "latest wins" comparisons.
func (s SeatRecord) Key() RecordKey {
	return RecordKey{ElectionType: s.ElectionType, RegionCode: s.Region.Code, Occasion: s.Occasion}
}

type RecordKey struct {
	ElectionType string
	RegionCode   string
	Occasion     string
}

// Bundle is the decoded content of one result archive.
type Bundle struct {
	Region Region
	Votes  VoteRecord
	Seats  SeatRecord
}

// Result types

type AggregationResult struct {
	PartyVotes       map[string]int `json:"party_votes"`
	ValidVotes       int            `json:"valid_votes"`
	InvalidVotes     int            `json:"invalid_votes"`
	EligibleVoters   int            `json:"eligible_voters"`
	TotalDistricts   int            `json:"total_districts"`
	CountedDistricts int            `json:"counted_districts"`
}

// TotalVotes is valid plus invalid votes.
func (a AggregationResult) TotalVotes() int {
	return a.ValidVotes + a.InvalidVotes
}

type PartyQuotient struct {
	Party    string  `json:"party"`
	Quotient float64 `json:"quotient"`
}

// Round is the winner and runner-up of one apportionment round.
type Round struct {
	Number   int            `json:"number"`
	Winner   PartyQuotient  `json:"winner"`
	RunnerUp *PartyQuotient `json:"runner_up,omitempty"`
}

type Apportionment struct {
	Seats      map[string]int  `json:"seats"`
	FinalRound Round           `json:"final_round"`
	Closing    []Round         `json:"closing"`
	Standing   []PartyQuotient `json:"standing"`
}

// API types

type RegionResult struct {
	Key    string            `json:"key"`
	Name   string            `json:"name"`
	Result AggregationResult `json:"result"`
}

type SnapshotResponse struct {
	ComputedAt    time.Time         `json:"computed_at"`
	ElectionType  string            `json:"election_type"`
	Occasion      string            `json:"occasion"`
	Adjusted      bool              `json:"adjusted"`
	Votes         AggregationResult `json:"votes"`
	Apportionment *Apportionment    `json:"apportionment,omitempty"`
}

type ManifestStatusResponse struct {
	Entries     int       `json:"entries"`
	ETag        string    `json:"etag,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}

type SyncRun struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Outcome         string    `json:"outcome"`
	ManifestEntries int       `json:"manifest_entries"`
	Fetched         int       `json:"fetched"`
	Error           string    `json:"error,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
