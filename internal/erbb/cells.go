package erbb

// Ligand doses in molecules per cell: 5 nM and 10 pM.
const (
	DoseHigh = 3.01e12
	DoseLow  = 6.02e9
)

// cellLines holds initial amounts (molecules per cell) per cell line,
// from the Chen et al. 2009 Jacobian files. EGF_0/HRG_0 are stimulus
// defaults; calibration conditions override them per dose.
var cellLines = map[string]map[string]float64{
	"A431": {
		"EGF_0": DoseHigh,
		"HRG_0": 0,
		"erbb1_0": 1.08e6,
		"erbb2_0": 4.62e5,
		"erbb3_0": 6.23e3,
		"erbb4_0": 7.94e2,
		"ATP_0": 1.2e9,
		"DEP_0": 7e4,
		"CPP_0": 5e3,
		"GRB2_0": 1264,
		"GRB2_SOS_0": 8.89e7,
		"RAS_0": 5.81e4,
		"RAF_0": 7.11e4,
		"MEK_0": 3.02e6,
		"ERK_0": 6.95e5,
		"PP1_0": 5e4,
		"PP2_0": 1.25e5,
		"PP3_0": 1.69e4,
		"PI3K_0": 3.55656e7,
		"PIP_0": 3.94e5,
		"PTEN_0": 5.62e4,
		"AKT_0": 9.05e5,
		"PDK1_0": 3.00416e8,
		"PP2A_0": 4.5e5,
	},
	"H1666": {
		"EGF_0": DoseHigh,
		"HRG_0": 0,
		"erbb1_0": 1.60e5,
		"erbb2_0": 6.83e3,
		"erbb3_0": 6.05e3,
		"erbb4_0": 2.59e1,
		"ATP_0": 1.2e9,
		"DEP_0": 6.23876e6,
		"CPP_0": 1.59621e6,
		"GRB2_0": 12649.1,
		"GRB2_SOS_0": 2.81171e6,
		"RAS_0": 183713,
		"RAF_0": 7113.12,
		"MEK_0": 3.02e6,
		"ERK_0": 6.95e5,
		"PP1_0": 28117.1,
		"PP2_0": 39363.9,
		"PP3_0": 168702,
		"PI3K_0": 3.55656e5,
		"PIP_0": 1.2448e6,
		"PTEN_0": 5000,
		"AKT_0": 9.05e5,
		"PDK1_0": 1.8955e6,
		"PP2A_0": 401063,
	},
	"H3255": {
		"EGF_0": DoseHigh,
		"HRG_0": 0,
		"erbb1_0": 1.29e6,
		"erbb2_0": 3.16e4,
		"erbb3_0": 4.48e4,
		"erbb4_0": 2.58e1,
		"ATP_0": 1.2e9,
		"DEP_0": 1.2448e9,
		"CPP_0": 4.49873e6,
		"GRB2_0": 400,
		"GRB2_SOS_0": 5e7,
		"RAS_0": 58095.2,
		"RAF_0": 1.26491e6,
		"MEK_0": 3.02e6,
		"ERK_0": 6.95e5,
		"PP1_0": 28117.1,
		"PP2_0": 39363.9,
		"PP3_0": 5.33484e6,
		"PI3K_0": 2e9,
		"PIP_0": 700000,
		"PTEN_0": 158114,
		"AKT_0": 9.05e5,
		"PDK1_0": 3.00416e8,
		"PP2A_0": 2.53054e7,
	},
}

// Conditions returns the four standard stimulus conditions used for
// calibration: EGF and HRG, each at saturating and trace dose. The
// overrides address the EGF_0/HRG_0 initial parameters.
func Conditions() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"EGF_high": {"EGF_0": DoseHigh, "HRG_0": 0},
		"EGF_low": {"EGF_0": DoseLow, "HRG_0": 0},
		"HRG_high": {"EGF_0": 0, "HRG_0": DoseHigh},
		"HRG_low": {"EGF_0": 0, "HRG_0": DoseLow},
	}
}
