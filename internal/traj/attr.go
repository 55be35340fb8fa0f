package traj

import "strings"

// Attr names a per-sample attribute of a Trajectory.
type Attr string

const (
	Frames   Attr = "frames"
	T        Attr = "t"
	Coord    Attr = "coord"
	F        Attr = "f"
	Mol      Attr = "mol"
	N        Attr = "n"
	U02      Attr = "u02"
	U20      Attr = "u20"
	U11      Attr = "u11"
	CoordErr Attr = "coord_err"
	FErr     Attr = "f_err"
	MolErr   Attr = "mol_err"
	NErr     Attr = "n_err"
	U02Err   Attr = "u02_err"
	U20Err   Attr = "u20_err"
	U11Err   Attr = "u11_err"
)

const errSuffix = "_err"

// attrOrder is the canonical attribute order, used for Attributes and for
// the column order of saved files.
var attrOrder = []Attr{
	Frames, T, Coord, F, Mol, N, U02, U20, U11,
	CoordErr, FErr, MolErr, NErr, U02Err, U20Err, U11Err,
}

// ValueAttrs lists the attributes that carry measured values and may be
// averaged, in canonical order.
var ValueAttrs = []Attr{Coord, F, Mol, N, U02, U20, U11}

// ParseAttr returns the attribute with the given name.
func ParseAttr(name string) (Attr, bool) {
	for _, a := range attrOrder {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// IsErr reports whether a is an uncertainty attribute.
func (a Attr) IsErr() bool {
	return strings.HasSuffix(string(a), errSuffix)
}

// Err returns the uncertainty attribute paired with a. Frames and t have
// no paired uncertainty and return "".
func (a Attr) Err() Attr {
	if a == Frames || a == T || a.IsErr() {
		return ""
	}
	return Attr(string(a) + errSuffix)
}

// Base returns the value attribute an uncertainty attribute belongs to.
func (a Attr) Base() Attr {
	return Attr(strings.TrimSuffix(string(a), errSuffix))
}

// Rows is the number of rows the attribute holds: 2 for coordinates, 1
// otherwise.
func (a Attr) Rows() int {
	if a == Coord || a == CoordErr {
		return 2
	}
	return 1
}

// UnitKey is the annotation key holding the unit of a. Coordinates and
// their uncertainties share coord_unit.
func (a Attr) UnitKey() string {
	switch a {
	case Coord, CoordErr:
		return "coord_unit"
	case Frames:
		return ""
	}
	if a.IsErr() {
		return string(a.Base()) + "_unit"
	}
	return string(a) + "_unit"
}

func (a Attr) String() string { return string(a) }
