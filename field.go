package linkaudit

import "fmt"

// Field identifies one of the link columns audited for every tool
type Field int

const (
	FieldHomepage Field = iota
	FieldPrivacy
	FieldGDPR
	FieldStorage
	FieldDPA
)

// Fields lists every link field in processing order
var Fields = []Field{FieldHomepage, FieldPrivacy, FieldGDPR, FieldStorage, FieldDPA}

// RepairableFields are the fields repaired from homepage candidates (everything but the homepage)
var RepairableFields = Fields[1:]

var fieldColumns = map[Field]string{
	FieldHomepage: "Homepage",
	FieldPrivacy:  "Privacy/Legal Link",
	FieldGDPR:     "DSGVO/GDPR Link",
	FieldStorage:  "Storage/Hosting Link",
	FieldDPA:      "DPA/AVV Link",
}

// Keywords are ordered by priority, highest first.
var fieldKeywords = map[Field][]string{
	FieldPrivacy: {"privacy", "legal", "policy"},
	FieldGDPR:    {"gdpr", "dsgvo", "privacy", "data-protection"},
	FieldStorage: {"security", "trust", "infrastructure", "hosting", "storage"},
	FieldDPA:     {"dpa", "avv", "data-processing", "addendum"},
}

var fieldQuestions = map[Field]string{
	FieldHomepage: "Is this the main website homepage?",
	FieldPrivacy:  "Does this contain privacy policy or legal terms?",
	FieldGDPR:     "Does this mention GDPR, DSGVO, or EU data protection?",
	FieldStorage:  "Does this describe data storage, hosting, or security?",
	FieldDPA:      "Does this contain a Data Processing Agreement or DPA?",
}

// Column returns the spreadsheet column name for the field
func (f Field) Column() string {
	if c, ok := fieldColumns[f]; ok {
		return c
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// String implements fmt.Stringer
func (f Field) String() string {
	return f.Column()
}

// Keywords returns the repair keywords for the field in priority order.
// The homepage has none; it is repaired through name guessing instead.
func (f Field) Keywords() []string {
	kw := fieldKeywords[f]
	out := make([]string, len(kw))
	copy(out, kw)
	return out
}

// Question returns the yes/no question used for content analysis
func (f Field) Question() string {
	if q, ok := fieldQuestions[f]; ok {
		return q
	}
	return "What is this?"
}

// ParseField maps a spreadsheet column name to its Field
func ParseField(column string) (Field, error) {
	for _, f := range Fields {
		if fieldColumns[f] == column {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown link column %q", column)
}
