package domain

// Mandatory column names of a pupil transport file, after header normalisation.
const (
	FieldMunicipality      = "GEMEENTENAAM"
	FieldPupilMunicipality = "GEMEENTENAAM_LEERLING"
	FieldSchool            = "INSTELLINGSNAAM_VESTIGING"
	FieldSchoolType        = "SOORT_PO"
	FieldPupilPostcode     = "POSTCODE_LEERLING"
	FieldSourceFile        = "bronbestand"
	FieldAgeLabel          = "leeftijd_label"
	FieldCount             = "aantal"
	FieldAge               = "leeftijd"
	FieldPostcodePrefix    = "PC4"
	AgeBandPrefix          = "LEEFTIJD_"
	DefaultPostcode        = "0000"
	PostcodePrefixLength   = 4
	UnderFiveToken         = "<5"
	UnderFiveValue         = 4
	MissingCellPlaceholder = "0"
)

// MandatoryFields lists the identifying columns every usable file must carry.
var MandatoryFields = []string{
	FieldMunicipality,
	FieldPupilMunicipality,
	FieldSchool,
	FieldSchoolType,
	FieldPupilPostcode,
}

// LongColumns is the column schema of an assembled dataset, in output order.
var LongColumns = []string{
	FieldMunicipality,
	FieldPupilMunicipality,
	FieldSchool,
	FieldSchoolType,
	FieldPupilPostcode,
	FieldSourceFile,
	FieldAgeLabel,
	FieldCount,
	FieldAge,
}

// Identity holds the mandatory fields of one source row.
type Identity struct {
	Municipality      string `json:"GEMEENTENAAM"`
	PupilMunicipality string `json:"GEMEENTENAAM_LEERLING"`
	School            string `json:"INSTELLINGSNAAM_VESTIGING"`
	SchoolType        string `json:"SOORT_PO"`
	PupilPostcode     string `json:"POSTCODE_LEERLING"`
}

// Field returns the value of a mandatory or derived column by name.
func (id Identity) Field(name string) (string, bool) {
	switch name {
	case FieldMunicipality:
		return id.Municipality, true
	case FieldPupilMunicipality:
		return id.PupilMunicipality, true
	case FieldSchool:
		return id.School, true
	case FieldSchoolType:
		return id.SchoolType, true
	case FieldPupilPostcode:
		return id.PupilPostcode, true
	case FieldPostcodePrefix:
		return PostcodePrefix(id.PupilPostcode), true
	}
	return "", false
}

// LongRecord is one (entity, age band) pair of the long-format dataset.
type LongRecord struct {
	Identity
	SourceFile string   `json:"bronbestand"`
	AgeLabel   string   `json:"leeftijd_label"`
	Count      int      `json:"aantal"`
	Age        *float64 `json:"leeftijd"`
}

// HasAge reports whether the age label carried a digit run.
func (r LongRecord) HasAge() bool {
	return r.Age != nil
}

// PostcodePrefix returns the first four characters of a postcode.
// Shorter values are returned unchanged.
func PostcodePrefix(postcode string) string {
	runes := []rune(postcode)
	if len(runes) <= PostcodePrefixLength {
		return postcode
	}
	return string(runes[:PostcodePrefixLength])
}

