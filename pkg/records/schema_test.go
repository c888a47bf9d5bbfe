package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_KeepsTrailingEmptyFields(t *testing.T) {
	rec := Parse(Format(map[int]string{FieldDepartment: "LIMA"}))
	require.Len(t, rec, NumFields)
	require.Equal(t, "LIMA", rec.Field(FieldDepartment))
	require.Equal(t, "", rec.Field(FieldUnits2))
}

func TestRecord_FieldOutOfRange(t *testing.T) {
	rec := Parse("a;b")
	require.True(t, rec.Has(1))
	require.False(t, rec.Has(2))
	require.False(t, rec.Has(-1))
	require.Equal(t, "", rec.Field(13))
}

func TestRecord_Numbers(t *testing.T) {
	rec := Parse(" 42 ;x;1.5;NaN;Inf;")

	v, ok := rec.Int(0)
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = rec.Int(1)
	require.False(t, ok)

	f, ok := rec.Float(2)
	require.True(t, ok)
	require.Equal(t, 1.5, f)

	_, ok = rec.Float(3)
	require.False(t, ok)
	_, ok = rec.Float(4)
	require.False(t, ok)
	_, ok = rec.Float(5)
	require.False(t, ok)
	_, ok = rec.Float(99)
	require.False(t, ok)
}

func TestRecord_FirstResult(t *testing.T) {
	tests := []struct {
		name   string
		fields map[int]string
		marker string
		want   float64
		ok     bool
	}{
		{
			name:   "slot one matches",
			fields: map[int]string{FieldProcedure1: "dosaje de glucosa", FieldResult1: "130"},
			marker: MarkerGlucose,
			want:   130,
			ok:     true,
		},
		{
			name: "slot two matches",
			fields: map[int]string{
				FieldProcedure1: "HEMOGLOBINA", FieldResult1: "12",
				FieldProcedure2: "COLESTEROL TOTAL", FieldResult2: "210.5",
			},
			marker: MarkerCholesterol,
			want:   210.5,
			ok:     true,
		},
		{
			name: "slot one wins when both match",
			fields: map[int]string{
				FieldProcedure1: "GLUCOSA", FieldResult1: "90",
				FieldProcedure2: "GLUCOSA", FieldResult2: "140",
			},
			marker: MarkerGlucose,
			want:   90,
			ok:     true,
		},
		{
			name: "unparsable match does not fall through",
			fields: map[int]string{
				FieldProcedure1: "GLUCOSA", FieldResult1: "n/a",
				FieldProcedure2: "GLUCOSA", FieldResult2: "140",
			},
			marker: MarkerGlucose,
			ok:     false,
		},
		{
			name:   "no match",
			fields: map[int]string{FieldProcedure1: "HEMOGLOBINA", FieldResult1: "12"},
			marker: MarkerGlucose,
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(Format(tt.fields)).FirstResult(tt.marker)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsHeader(t *testing.T) {
	require.True(t, IsHeader(0))
	require.False(t, IsHeader(1))
}

func TestHeaderLine(t *testing.T) {
	rec := Parse(HeaderLine())
	require.Len(t, rec, NumFields)
	require.Equal(t, "FECHA_CORTE", rec.Field(FieldCutoffDate))
	require.Equal(t, "UNIDADES_2", rec.Field(FieldUnits2))
}
