// Package catalog fetches, parses and filters planet mass-radius tables.
//
// Rows carry asymmetric uncertainties the way the NASA Exoplanet Archive
// reports them: the upper error is a positive offset and the lower error a
// negative offset from the central value.
package catalog

// Row is a single catalog entry. Values are Earth radii and Earth masses.
type Row struct {
	Name           string
	Radius         float64
	RadiusErrUpper float64
	RadiusErrLower float64
	Mass           float64
	MassErrUpper   float64
	MassErrLower   float64
}

// numeric returns the six numeric fields in column order.
func (r Row) numeric() [6]float64 {
	return [6]float64{r.Radius, r.RadiusErrUpper, r.RadiusErrLower, r.Mass, r.MassErrUpper, r.MassErrLower}
}

// Columns maps Row fields onto CSV header names. Name is optional.
type Columns struct {
	Name           string
	Radius         string
	RadiusErrUpper string
	RadiusErrLower string
	Mass           string
	MassErrUpper   string
	MassErrLower   string
}

// DefaultColumns are the Planetary Systems table names of the NASA Exoplanet Archive.
var DefaultColumns = Columns{
	Name:           "pl_name",
	Radius:         "pl_rade",
	RadiusErrUpper: "pl_radeerr1",
	RadiusErrLower: "pl_radeerr2",
	Mass:           "pl_bmasse",
	MassErrUpper:   "pl_bmasseerr1",
	MassErrLower:   "pl_bmasseerr2",
}

// numeric returns the header names of the six numeric fields in Row.numeric order.
func (c Columns) numeric() [6]string {
	return [6]string{c.Radius, c.RadiusErrUpper, c.RadiusErrLower, c.Mass, c.MassErrUpper, c.MassErrLower}
}

// Select returns the header names to request from the archive, name first when set.
func (c Columns) Select() []string {
	n := c.numeric()
	cols := make([]string, 0, 7)
	if c.Name != "" {
		cols = append(cols, c.Name)
	}
	return append(cols, n[:]...)
}
