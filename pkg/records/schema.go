// Package records describes the fixed layout of one clinical encounter row.
package records

import (
	"math"
	"strconv"
	"strings"
)

// Delimiter separates the fields of a raw row.
const Delimiter = ";"

// HeaderIndex is the global line index of the dataset header.
const HeaderIndex = 0

// Field positions within a row.
const (
	FieldCutoffDate = iota
	FieldDepartment
	FieldProvince
	FieldDistrict
	FieldUbigeo
	FieldHealthNetwork
	FieldFacility
	FieldPatientID
	FieldPatientAge
	FieldPatientSex
	FieldDoctorAge
	FieldDoctorID
	FieldDiagnosisCode
	FieldDiagnosis
	FieldHospitalArea
	FieldHospitalService
	FieldHospitalActivity
	FieldSampleDate
	FieldResultDate1
	FieldProcedure1
	FieldResult1
	FieldUnits1
	FieldResultDate2
	FieldProcedure2
	FieldResult2
	FieldUnits2

	NumFields
)

// Headers holds the dataset's column names in field order.
var Headers = [NumFields]string{
	"FECHA_CORTE", "DEPARTAMENTO", "PROVINCIA", "DISTRITO", "UBIGEO", "RED", "IPRESS",
	"ID_PACIENTE", "EDAD_PACIENTE", "SEXO_PACIENTE", "EDAD_MEDICO", "ID_MEDICO",
	"COD_DIAG", "DIAGNOSTICO", "AREA_HOSPITALARIA", "SERVICIO_HOSPITALARIO",
	"ACTIVIDAD_HOSPITALARIA", "FECHA_MUESTRA", "FEC_RESULTADO_1", "PROCEDIMIENTO_1",
	"RESULTADO_1", "UNIDADES_1", "FEC_RESULTADO_2", "PROCEDIMIENTO_2",
	"RESULTADO_2", "UNIDADES_2",
}

// Lab procedure markers as they appear (upper-cased) in procedure names.
const (
	MarkerGlucose     = "GLUCOSA"
	MarkerCholesterol = "COLESTEROL"
)

// Slot locates one lab procedure/result/unit triple.
type Slot struct {
	Procedure int
	Result    int
	Units     int
}

// Slots lists the two lab triples of a row, in lookup order.
var Slots = [2]Slot{
	{Procedure: FieldProcedure1, Result: FieldResult1, Units: FieldUnits1},
	{Procedure: FieldProcedure2, Result: FieldResult2, Units: FieldUnits2},
}

func IsHeader(index int) bool {
	return index == HeaderIndex
}

// Record is a split row. Trailing empty fields are preserved.
type Record []string

func Parse(line string) Record {
	return strings.Split(line, Delimiter)
}

// Has reports whether the row is long enough to contain field i.
func (r Record) Has(i int) bool {
	return i >= 0 && i < len(r)
}

// Field returns the trimmed value of field i, or "" when the row is short.
func (r Record) Field(i int) string {
	if !r.Has(i) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func (r Record) Int(i int) (int, bool) {
	if !r.Has(i) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(r[i]))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float parses field i as a finite real number.
func (r Record) Float(i int) (float64, bool) {
	if !r.Has(i) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsProcedure reports whether the procedure name in slot contains marker,
// ignoring case.
func (r Record) IsProcedure(slot Slot, marker string) bool {
	if !r.Has(slot.Procedure) {
		return false
	}
	return strings.Contains(strings.ToUpper(r[slot.Procedure]), marker)
}

// FirstResult looks for marker in slot 1 and then slot 2 and parses the
// result of the first slot that matches. A match with an unparsable result
// reports false without falling through to the next slot.
func (r Record) FirstResult(marker string) (float64, bool) {
	for _, slot := range Slots {
		if r.IsProcedure(slot, marker) {
			return r.Float(slot.Result)
		}
	}
	return 0, false
}
