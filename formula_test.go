package geosheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShiftFormula(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		shift   Shift
		want    string
	}{
		{"no shift", "A1+B2", Shift{}, "A1+B2"},
		{"row after pivot", "A5+1", RowShift(3, 1), "A6+1"},
		{"row before pivot", "A2*2", RowShift(3, 1), "A2*2"},
		{"absolute markers kept", "$A$5", RowShift(3, 2), "$A$7"},
		{"range widens", "SUM(B15:B21)", RowShift(21, 1), "SUM(B15:B22)"},
		{"range shrinks", "SUM(B15:B21)", RowShift(18, -1), "SUM(B15:B20)"},
		{"deleted cell", "B21*2", RowShift(21, -1), "#REF!*2"},
		{"column insert", "SUM(C1:T1)", ColShift(6, 1), "SUM(C1:U1)"},
		{"own sheet qualifier", "Metadata!A40", RowShift(39, 1), "Metadata!A41"},
		{"other sheet untouched", "'Data validation'!$A$2:$A$73", RowShift(1, 5), "'Data validation'!$A$2:$A$73"},
		{"string literal untouched", `IF(A5="A5","x",A5)`, RowShift(1, 1), `IF(A6="A5","x",A6)`},
		{"function name untouched", "LOG10(A3)", RowShift(1, 1), "LOG10(A4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shiftFormula(tt.formula, "Metadata", tt.shift))
		})
	}
}

func TestShiftFormula_WholeRangeDeleted(t *testing.T) {
	assert.Equal(t, "SUM(#REF!)", shiftFormula("SUM(A5:A5)", "Metadata", RowShift(5, -1)))
}

func TestShiftForeignFormula(t *testing.T) {
	shift := RowShift(21, 1)
	assert.Equal(t, "'Metadata'!B23&A22", shiftForeignFormula("'Metadata'!B22&A22", "Metadata", shift))
	assert.Equal(t, "COUNTA(Metadata!B15:B22)", shiftForeignFormula("COUNTA(Metadata!B15:B21)", "Metadata", shift))
	assert.Equal(t, "SUM(A30)", shiftForeignFormula("SUM(A30)", "Metadata", shift))
}
