package llm

// Kind is the JSON shape of one node of the record.
type Kind int

const (
	KindField      Kind = iota // single leaf object
	KindFieldList              // array of leaf objects
	KindObject                 // nested section
	KindObjectList             // array of nested groups (medications)
)

// Node describes one key of the record as the model must return it.
type Node struct {
	Name     string
	Kind     Kind
	Desc     string // leaf description shown to the model
	Children []Node
}

func field(name, desc string) Node     { return Node{Name: name, Kind: KindField, Desc: desc} }
func fieldList(name, desc string) Node { return Node{Name: name, Kind: KindFieldList, Desc: desc} }
func object(name string, children ...Node) Node {
	return Node{Name: name, Kind: KindObject, Children: children}
}
func objectList(name string, children ...Node) Node {
	return Node{Name: name, Kind: KindObjectList, Children: children}
}

// RecordShape mirrors record.Record key for key, in output order.
var RecordShape = []Node{
	object("patientInfo",
		field("name", "The full name of the patient"),
		field("dob", "The date of birth of the patient"),
		field("gender", "The gender of the patient"),
	),
	field("presentingComplaint", "The patient's main complaint in full"),
	field("historyOfPresentIllness", "A detailed history of the patient's present illness"),
	object("pastMedicalHistory",
		fieldList("conditions", "A past medical condition"),
		fieldList("surgeries", "A past surgery"),
		fieldList("allergies", "A known allergy"),
	),
	object("familyHistory",
		fieldList("father", "A condition affecting the patient's father"),
		fieldList("mother", "A condition affecting the patient's mother"),
	),
	object("socialHistory",
		field("smoking", "The patient's smoking habits"),
		field("alcohol", "The patient's alcohol consumption habits"),
	),
	objectList("medications",
		field("name", "Name of the medication"),
		field("dose", "Dosage of the medication"),
		field("frequency", "Frequency of the medication"),
	),
	object("vitalSigns",
		field("bloodPressure", "The patient's blood pressure"),
		field("heartRate", "The patient's heart rate"),
		field("temperature", "The patient's body temperature"),
		field("respiratoryRate", "The patient's respiratory rate"),
	),
	object("reviewOfSystems",
		fieldList("cardiovascular", "A cardiovascular symptom"),
		fieldList("respiratory", "A respiratory symptom"),
		fieldList("neurological", "A neurological symptom"),
	),
	object("assessmentAndPlan",
		fieldList("assessment", "An assessment"),
		fieldList("plan", "A plan"),
	),
}

// BuildRecordJSONSchema returns the JSON Schema (draft 2020-12 subset) that a
// sanitised model response must satisfy.
func BuildRecordJSONSchema() map[string]any {
	return objectSchema(RecordShape)
}

func objectSchema(nodes []Node) map[string]any {
	props := make(map[string]any, len(nodes))
	required := make([]string, 0, len(nodes))
	for _, n := range nodes {
		props[n.Name] = nodeSchema(n)
		required = append(required, n.Name)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func nodeSchema(n Node) map[string]any {
	switch n.Kind {
	case KindFieldList:
		return map[string]any{"type": "array", "items": fieldSchema()}
	case KindObject:
		return objectSchema(n.Children)
	case KindObjectList:
		return map[string]any{"type": "array", "items": objectSchema(n.Children)}
	default:
		return fieldSchema()
	}
}

func fieldSchema() map[string]any {
	coord := map[string]any{"type": "number"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"value"},
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
			"wordIds": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer", "minimum": 0},
			},
			"boundingBox": map[string]any{
				"oneOf": []any{
					map[string]any{"type": "null"},
					map[string]any{
						"type":       "object",
						"required":   []string{"x0", "y0", "x1", "y1"},
						"properties": map[string]any{"x0": coord, "y0": coord, "x1": coord, "y1": coord},
					},
				},
			},
			"page": map[string]any{
				"oneOf": []any{
					map[string]any{"type": "null"},
					map[string]any{"type": "integer", "minimum": 1},
				},
			},
		},
	}
}
