package types

// Institution is a researcher's last known affiliation. The fields come
// from OpenAlex and are all-or-nothing: a researcher either has an
// institution object or a nil pointer, never a partially filled one.
type Institution struct {
	Name    string `json:"name"`
	ROR     string `json:"ror,omitempty"`
	Country string `json:"country,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Researcher is an externally sourced bibliographic record. Optional
// numeric fields are pointers so "absent" and "zero" stay distinct;
// defaults are applied at the ingestion boundary, not in the scorer.
type Researcher struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	ORCID                string       `json:"orcid,omitempty"`
	MatchedWorksCount    int          `json:"matchedWorksCount"`
	WorksCount           *int         `json:"worksCount"`
	CitedByCount         *int         `json:"citedByCount"`
	LastKnownInstitution *Institution `json:"lastKnownInstitution"`
}

// TotalWorks returns the works count, falling back to the matched count
// when OpenAlex did not report a total.
func (r Researcher) TotalWorks() int {
	if r.WorksCount != nil {
		return *r.WorksCount
	}
	return r.MatchedWorksCount
}

// Citations returns the cited-by count, treating absent as zero.
func (r Researcher) Citations() int {
	if r.CitedByCount != nil {
		return *r.CitedByCount
	}
	return 0
}

// HasInstitution reports whether a named affiliation is on record.
func (r Researcher) HasInstitution() bool {
	return r.LastKnownInstitution != nil && r.LastKnownInstitution.Name != ""
}

// Recruitment holds a professor's recruitment metadata as curated on the
// undergraduate research roster.
type Recruitment struct {
	LookingToRecruit      []string `json:"lookingToRecruit,omitempty"`
	DesiredStartDates     []string `json:"desiredStartDates,omitempty"`
	PotentialProjectAreas []string `json:"potentialProjectAreas,omitempty"`
}

// Professor is a locally curated faculty profile.
type Professor struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	Email                  string       `json:"email,omitempty"`
	Departments            []string     `json:"departments,omitempty"`
	Interests              []string     `json:"interests,omitempty"`
	Methodology            []string     `json:"methodology,omitempty"`
	ResearchOptions        []string     `json:"researchOptions,omitempty"`
	ResearchClassification []string     `json:"researchClassification,omitempty"`
	Affiliations           []string     `json:"affiliations,omitempty"`
	Recruitment            *Recruitment `json:"recruitment,omitempty"`
	NoStudentInquiries     bool         `json:"noStudentInquiries,omitempty"`
	ProfileURL             string       `json:"profileUrl,omitempty"`
}
