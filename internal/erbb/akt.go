package erbb

import "github.com/lolab-msm/erbbfit/internal/model"

// declareAKT declares the PI3K/PIP3/AKT branch. Receptor-bound PI3K
// converts PIP2 to PIP3; PIP3 recruits AKT to the membrane where PDK1
// phosphorylates it twice. PTEN and PP2A reverse the two halves.
func declareAKT(b *model.Builder, r receptorTypes, amounts map[string]float64) {
	pi3k := b.Monomer("PI3K", []string{"brec", "bpip"}, nil)
	pip := b.Monomer("PIP", []string{"benz", "bakt", "st"}, map[string][]string{"st": {"PIP2", "PIP3"}})
	pten := b.Monomer("PTEN", []string{"b"}, nil)
	akt := b.Monomer("AKT", []string{"bpip", "b", "st"}, map[string][]string{"st": {"U", "P", "PP"}})
	pdk1 := b.Monomer("PDK1", []string{"b"}, nil)
	pp2a := b.Monomer("PP2A", []string{"b"}, nil)

	// An engaged PI3K (bpip bound) stays docked until catalysis frees it.
	bindRule(b, "pi3k_bind_rec",
		site{Type: pi3k, Name: "brec", Ctx: []model.SiteArg{model.Unbound("bpip")}},
		site{Type: r.er, Name: "b", Ctx: []model.SiteArg{
			model.AnyBond("bd"), model.State("st", "P"), model.State("loc", "C"),
		}},
		kf, kr)
	b.Rule("pi3k_release",
		[]model.ComplexPattern{model.Complex(
			pi3k.Pattern(model.Bond("brec", 1), model.Unbound("bpip")),
			r.er.Pattern(model.Bond("b", 1), model.State("st", "U")),
		)},
		[]model.ComplexPattern{
			model.Complex(pi3k.Pattern(model.Unbound("brec"))),
			model.Complex(r.er.Pattern(model.Unbound("b"))),
		},
		b.Parameter("kpi3k_rel", kr))

	catalyzeRule(b, "pip2_to_pip3",
		site{Type: pi3k, Name: "bpip", Ctx: []model.SiteArg{model.AnyBond("brec")}},
		site{Type: pip, Name: "benz"},
		"st", "PIP2", "PIP3", kf, kr, kcp)
	catalyzeRule(b, "pip3_to_pip2",
		site{Type: pten, Name: "b"},
		site{Type: pip, Name: "benz"},
		"st", "PIP3", "PIP2", kf, kr, kcd)

	// AKT with a kinase or phosphatase attached stays membrane-bound.
	bindRule(b, "akt_bind_pip3",
		site{Type: akt, Name: "bpip", Ctx: []model.SiteArg{model.Unbound("b")}},
		site{Type: pip, Name: "bakt", Ctx: []model.SiteArg{model.State("st", "PIP3")}},
		kf, kr)

	b.Rule("akt_release",
		[]model.ComplexPattern{model.Complex(
			akt.Pattern(model.Bond("bpip", 1), model.Unbound("b")),
			pip.Pattern(model.Bond("bakt", 1), model.State("st", "PIP2")),
		)},
		[]model.ComplexPattern{
			model.Complex(akt.Pattern(model.Unbound("bpip"))),
			model.Complex(pip.Pattern(model.Unbound("bakt"))),
		},
		b.Parameter("kakt_rel", kr))

	// PDK1 only reaches membrane-recruited AKT.
	aktMem := []model.SiteArg{model.AnyBond("bpip")}
	catalyzeRule(b, "akt_phos_1",
		site{Type: pdk1, Name: "b"},
		site{Type: akt, Name: "b", Ctx: aktMem},
		"st", "U", "P", kf, kr, kcp)
	catalyzeRule(b, "akt_phos_2",
		site{Type: pdk1, Name: "b"},
		site{Type: akt, Name: "b", Ctx: aktMem},
		"st", "P", "PP", kf, kr, kcp)
	catalyzeRule(b, "akt_dephos_1",
		site{Type: pp2a, Name: "b"},
		site{Type: akt, Name: "b"},
		"st", "PP", "P", kf, kr, kcd)
	catalyzeRule(b, "akt_dephos_2",
		site{Type: pp2a, Name: "b"},
		site{Type: akt, Name: "b"},
		"st", "P", "U", kf, kr, kcd)

	p := func(name string) *model.Parameter { return b.Parameter(name, amounts[name]) }
	b.Initial(model.Complex(pi3k.Pattern()), p("PI3K_0"))
	b.Initial(model.Complex(pip.Pattern(model.State("st", "PIP2"))), p("PIP_0"))
	b.Initial(model.Complex(pten.Pattern()), p("PTEN_0"))
	b.Initial(model.Complex(akt.Pattern(model.State("st", "U"))), p("AKT_0"))
	b.Initial(model.Complex(pdk1.Pattern()), p("PDK1_0"))
	b.Initial(model.Complex(pp2a.Pattern()), p("PP2A_0"))

	b.Observable("obsAKTPP", model.Complex(akt.Pattern(model.State("st", "PP"))))
}
