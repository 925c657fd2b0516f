package humidity

import "fmt"

const (
	// Rows is the number of temperature bins in the calibration table.
	Rows = 12
	// Columns is the number of humidity reference points per row, sentinel included.
	Columns = 17

	minTemperature = 0.0
	maxTemperature = 50.0
	tempStep       = 5.0

	minImpedance = 0.0
	maxImpedance = 20000.0

	baseRH = 15.0
	stepRH = 5.0
)

type table [Rows][Columns]float64

// HCZ-J3 impedance (ohms) per temperature bin. Column c is 15+5c %RH,
// column 16 is the 0 ohm sentinel.
var calibration = table{
	{20000, 20000, 9900, 4400, 1900, 810, 420, 211, 109, 63, 37, 22, 14, 9, 6, 4, 0},      // <= 5 °C
	{20000, 20000, 9900, 4400, 1900, 810, 420, 211, 109, 63, 37, 22, 14, 9, 6, 4, 0},      // 5 °C
	{20000, 20000, 6900, 3100, 1400, 600, 300, 150, 83, 48, 28, 17, 12, 7.3, 4.8, 3.2, 0}, // 10 °C
	{20000, 20000, 4600, 2000, 900, 430, 220, 110, 62, 37, 22, 14, 9.4, 6, 3.9, 2.7, 0},   // 15 °C
	{20000, 7200, 3200, 1500, 670, 310, 160, 83, 48, 29, 18, 12, 7.8, 5, 3.3, 2.2, 0},     // 20 °C
	{20000, 5000, 2300, 920, 450, 220, 120, 66, 37, 23, 14, 9.6, 6.5, 4.2, 2.8, 1.9, 0},   // 25 °C
	{20000, 3600, 1700, 770, 360, 170, 90, 51, 29, 18, 12, 8, 5.5, 3.8, 2.5, 1.7, 0},      // 30 °C
	{20000, 2500, 1100, 530, 250, 130, 71, 40, 23, 15, 10, 6.8, 4.7, 3.3, 2.2, 1.5, 0},    // 35 °C
	{20000, 1800, 920, 430, 210, 96, 55, 31, 19, 12, 8.1, 5.8, 4.1, 2.9, 2, 1.4, 0},       // 40 °C
	{20000, 1300, 600, 280, 140, 74, 43, 25, 15, 10.3, 6.9, 4.9, 3.4, 2.4, 1.7, 1.2, 0},   // 45 °C
	{20000, 1100, 520, 250, 114, 61, 35, 20, 13, 8.7, 5.9, 4.3, 3, 2, 1.4, 1.1, 0},        // 50 °C
	{20000, 1100, 520, 250, 114, 61, 35, 20, 13, 8.7, 5.9, 4.3, 3, 2, 1.4, 1.1, 0},        // >= 50 °C
}

func init() {
	if err := calibration.validate(); err != nil {
		panic(fmt.Sprintf("humidity: invalid calibration table: %v", err))
	}
}

func (t *table) row(line int) []float64 {
	return t[line][:]
}

func (t *table) validate() error {
	if t[0] != t[1] {
		return fmt.Errorf("rows 0 and 1 differ")
	}
	if t[Rows-2] != t[Rows-1] {
		return fmt.Errorf("rows %d and %d differ", Rows-2, Rows-1)
	}
	for r, row := range t {
		if row[Columns-1] != 0 {
			return fmt.Errorf("row %d: sentinel column is %v, want 0", r, row[Columns-1])
		}
		if row[0] != maxImpedance {
			return fmt.Errorf("row %d: saturation column is %v, want %v", r, row[0], maxImpedance)
		}
		for c, v := range row {
			if v < 0 {
				return fmt.Errorf("row %d col %d: negative impedance %v", r, c, v)
			}
			if c > 0 && v > row[c-1] {
				return fmt.Errorf("row %d col %d: impedance rises (%v > %v)", r, c, v, row[c-1])
			}
		}
	}
	return nil
}

// ReferenceRH returns the humidity a table column stands for.
func ReferenceRH(column int) float64 {
	return baseRH + stepRH*float64(column)
}
