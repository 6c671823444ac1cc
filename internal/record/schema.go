package record

import (
	"errors"
	"fmt"
)

// Record is the fixed clinical-record shape. F is the leaf type: Field for
// results handed to callers, other leaf types for intermediate decoding.
type Record[F any] struct {
	PatientInfo             PatientInfo[F]        `json:"patientInfo"`
	PresentingComplaint     F                     `json:"presentingComplaint"`
	HistoryOfPresentIllness F                     `json:"historyOfPresentIllness"`
	PastMedicalHistory      PastMedicalHistory[F] `json:"pastMedicalHistory"`
	FamilyHistory           FamilyHistory[F]      `json:"familyHistory"`
	SocialHistory           SocialHistory[F]      `json:"socialHistory"`
	Medications             []Medication[F]       `json:"medications"`
	VitalSigns              VitalSigns[F]         `json:"vitalSigns"`
	ReviewOfSystems         ReviewOfSystems[F]    `json:"reviewOfSystems"`
	AssessmentAndPlan       AssessmentAndPlan[F]  `json:"assessmentAndPlan"`
}

type PatientInfo[F any] struct {
	Name   F `json:"name"`
	DOB    F `json:"dob"`
	Gender F `json:"gender"`
}

type PastMedicalHistory[F any] struct {
	Conditions []F `json:"conditions"`
	Surgeries  []F `json:"surgeries"`
	Allergies  []F `json:"allergies"`
}

type FamilyHistory[F any] struct {
	Father []F `json:"father"`
	Mother []F `json:"mother"`
}

type SocialHistory[F any] struct {
	Smoking F `json:"smoking"`
	Alcohol F `json:"alcohol"`
}

type Medication[F any] struct {
	Name      F `json:"name"`
	Dose      F `json:"dose"`
	Frequency F `json:"frequency"`
}

type VitalSigns[F any] struct {
	BloodPressure   F `json:"bloodPressure"`
	HeartRate       F `json:"heartRate"`
	Temperature     F `json:"temperature"`
	RespiratoryRate F `json:"respiratoryRate"`
}

type ReviewOfSystems[F any] struct {
	Cardiovascular []F `json:"cardiovascular"`
	Respiratory    []F `json:"respiratory"`
	Neurological   []F `json:"neurological"`
}

type AssessmentAndPlan[F any] struct {
	Assessment []F `json:"assessment"`
	Plan       []F `json:"plan"`
}

// StructuredRecord is the record returned to callers.
type StructuredRecord = Record[Field]

// Map rebuilds r leaf by leaf. fn is called in schema order with the leaf's
// dotted path, e.g. "patientInfo.name" or "medications[1].dose".
// List sections of the result are never nil.
func Map[F, G any](r Record[F], fn func(path string, f F) G) Record[G] {
	var out Record[G]
	out.PatientInfo = PatientInfo[G]{
		Name:   fn("patientInfo.name", r.PatientInfo.Name),
		DOB:    fn("patientInfo.dob", r.PatientInfo.DOB),
		Gender: fn("patientInfo.gender", r.PatientInfo.Gender),
	}
	out.PresentingComplaint = fn("presentingComplaint", r.PresentingComplaint)
	out.HistoryOfPresentIllness = fn("historyOfPresentIllness", r.HistoryOfPresentIllness)
	out.PastMedicalHistory = PastMedicalHistory[G]{
		Conditions: mapList("pastMedicalHistory.conditions", r.PastMedicalHistory.Conditions, fn),
		Surgeries:  mapList("pastMedicalHistory.surgeries", r.PastMedicalHistory.Surgeries, fn),
		Allergies:  mapList("pastMedicalHistory.allergies", r.PastMedicalHistory.Allergies, fn),
	}
	out.FamilyHistory = FamilyHistory[G]{
		Father: mapList("familyHistory.father", r.FamilyHistory.Father, fn),
		Mother: mapList("familyHistory.mother", r.FamilyHistory.Mother, fn),
	}
	out.SocialHistory = SocialHistory[G]{
		Smoking: fn("socialHistory.smoking", r.SocialHistory.Smoking),
		Alcohol: fn("socialHistory.alcohol", r.SocialHistory.Alcohol),
	}
	out.Medications = make([]Medication[G], len(r.Medications))
	for i, m := range r.Medications {
		p := fmt.Sprintf("medications[%d]", i)
		out.Medications[i] = Medication[G]{
			Name:      fn(p+".name", m.Name),
			Dose:      fn(p+".dose", m.Dose),
			Frequency: fn(p+".frequency", m.Frequency),
		}
	}
	out.VitalSigns = VitalSigns[G]{
		BloodPressure:   fn("vitalSigns.bloodPressure", r.VitalSigns.BloodPressure),
		HeartRate:       fn("vitalSigns.heartRate", r.VitalSigns.HeartRate),
		Temperature:     fn("vitalSigns.temperature", r.VitalSigns.Temperature),
		RespiratoryRate: fn("vitalSigns.respiratoryRate", r.VitalSigns.RespiratoryRate),
	}
	out.ReviewOfSystems = ReviewOfSystems[G]{
		Cardiovascular: mapList("reviewOfSystems.cardiovascular", r.ReviewOfSystems.Cardiovascular, fn),
		Respiratory:    mapList("reviewOfSystems.respiratory", r.ReviewOfSystems.Respiratory, fn),
		Neurological:   mapList("reviewOfSystems.neurological", r.ReviewOfSystems.Neurological, fn),
	}
	out.AssessmentAndPlan = AssessmentAndPlan[G]{
		Assessment: mapList("assessmentAndPlan.assessment", r.AssessmentAndPlan.Assessment, fn),
		Plan:       mapList("assessmentAndPlan.plan", r.AssessmentAndPlan.Plan, fn),
	}
	return out
}

func mapList[F, G any](path string, in []F, fn func(string, F) G) []G {
	out := make([]G, len(in))
	for i, f := range in {
		out[i] = fn(fmt.Sprintf("%s[%d]", path, i), f)
	}
	return out
}

// Walk visits every leaf of r in schema order.
func Walk[F any](r Record[F], fn func(path string, f F)) {
	Map(r, func(path string, f F) struct{} {
		fn(path, f)
		return struct{}{}
	})
}

// PathField is one flattened leaf.
type PathField struct {
	Path  string `json:"path"`
	Field Field  `json:"field"`
}

// Fields flattens r into (path, Field) pairs in schema order.
func Fields(r StructuredRecord) []PathField {
	var out []PathField
	Walk(r, func(path string, f Field) {
		out = append(out, PathField{Path: path, Field: f})
	})
	return out
}

// Empty returns a record with every scalar field empty and every list empty.
func Empty() StructuredRecord {
	return Normalize(StructuredRecord{})
}

// Normalize enforces the Field invariant on every leaf and replaces nil lists
// with empty ones so the JSON shape is always complete.
func Normalize(r StructuredRecord) StructuredRecord {
	return Map(r, func(_ string, f Field) Field { return f.normalized() })
}

// Check returns every Field invariant violation in r.
func Check(r StructuredRecord) error {
	var errs []error
	Walk(r, func(path string, f Field) {
		if err := f.Check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	})
	return errors.Join(errs...)
}
