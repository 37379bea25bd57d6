package erbb

import "github.com/lolab-msm/erbbfit/internal/model"

// declareMAPK declares the Ras/Raf/MEK/ERK cascade. GRB2-SOS docks on
// phosphorylated receptor members; receptor-bound SOS loads RAS with
// GTP, and active RAS starts the kinase relay down to doubly
// phosphorylated ERK. PP1/PP2/PP3 run the relay backwards.
func declareMAPK(b *model.Builder, r receptorTypes, amounts map[string]float64) {
	grb2 := b.Monomer("GRB2", []string{"brec", "bsos"}, nil)
	sos := b.Monomer("SOS", []string{"bgrb", "bras"}, nil)
	ras := b.Monomer("RAS", []string{"bsos", "braf", "st"}, map[string][]string{"st": {"GDP", "GTP"}})
	raf := b.Monomer("RAF", []string{"b", "st"}, map[string][]string{"st": {"U", "P"}})
	pp1 := b.Monomer("PP1", []string{"b"}, nil)
	mek := b.Monomer("MEK", []string{"b", "st"}, map[string][]string{"st": {"U", "P", "PP"}})
	pp2 := b.Monomer("PP2", []string{"b"}, nil)
	erk := b.Monomer("ERK", []string{"b", "st"}, map[string][]string{"st": {"U", "P", "PP"}})
	pp3 := b.Monomer("PP3", []string{"b"}, nil)

	bindRule(b, "grb2_bind_rec",
		site{Type: grb2, Name: "brec"},
		site{Type: r.er, Name: "b", Ctx: []model.SiteArg{
			model.AnyBond("bd"), model.State("st", "P"), model.State("loc", "C"),
		}},
		kf, kr)
	b.Rule("grb2_release",
		[]model.ComplexPattern{model.Complex(
			grb2.Pattern(model.Bond("brec", 1)),
			r.er.Pattern(model.Bond("b", 1), model.State("st", "U")),
		)},
		[]model.ComplexPattern{
			model.Complex(grb2.Pattern(model.Unbound("brec"))),
			model.Complex(r.er.Pattern(model.Unbound("b"))),
		},
		b.Parameter("kgrb2_rel", kr))
	bindRule(b, "grb2_bind_sos",
		site{Type: grb2, Name: "bsos"},
		site{Type: sos, Name: "bgrb", Ctx: []model.SiteArg{model.Unbound("bras")}},
		7.5e-6, 1.5)

	// RAS loading needs the whole receptor-GRB2-SOS chain assembled.
	b.RuleReversible("sos_bind_ras",
		[]model.ComplexPattern{
			model.Complex(
				grb2.Pattern(model.AnyBond("brec"), model.Bond("bsos", 1)),
				sos.Pattern(model.Bond("bgrb", 1), model.Unbound("bras")),
			),
			model.Complex(ras.Pattern(model.Unbound("bsos"), model.Unbound("braf"), model.State("st", "GDP"))),
		},
		[]model.ComplexPattern{model.Complex(
			grb2.Pattern(model.Bond("bsos", 1)),
			sos.Pattern(model.Bond("bgrb", 1), model.Bond("bras", 2)),
			ras.Pattern(model.Bond("bsos", 2), model.State("st", "GDP")),
		)},
		b.Parameter("sos_ras_f", kf),
		b.Parameter("sos_ras_r", kr))
	b.Rule("ras_activate",
		[]model.ComplexPattern{model.Complex(
			grb2.Pattern(model.AnyBond("brec"), model.Bond("bsos", 1)),
			sos.Pattern(model.Bond("bgrb", 1), model.Bond("bras", 2)),
			ras.Pattern(model.Bond("bsos", 2), model.State("st", "GDP")),
		)},
		[]model.ComplexPattern{
			model.Complex(grb2.Pattern(), sos.Pattern(model.Unbound("bras"))),
			model.Complex(ras.Pattern(model.Unbound("bsos"), model.State("st", "GTP"))),
		},
		b.Parameter("ras_gtp_c", kcp))
	b.Rule("ras_hydrolysis",
		[]model.ComplexPattern{model.Complex(
			ras.Pattern(model.Unbound("bsos"), model.Unbound("braf"), model.State("st", "GTP")),
		)},
		[]model.ComplexPattern{model.Complex(ras.Pattern(model.State("st", "GDP")))},
		b.Parameter("ras_gdp_c", kcd))

	catalyzeRule(b, "raf_activate",
		site{Type: ras, Name: "braf", Ctx: []model.SiteArg{model.Unbound("bsos"), model.State("st", "GTP")}},
		site{Type: raf, Name: "b"},
		"st", "U", "P", kf, kr, kcp)
	catalyzeRule(b, "raf_deactivate",
		site{Type: pp1, Name: "b"},
		site{Type: raf, Name: "b"},
		"st", "P", "U", kf, kr, kcd)

	rafP := site{Type: raf, Name: "b", Ctx: []model.SiteArg{model.State("st", "P")}}
	catalyzeRule(b, "mek_phos_1", rafP, site{Type: mek, Name: "b"}, "st", "U", "P", kf, kr, kcp)
	catalyzeRule(b, "mek_phos_2", rafP, site{Type: mek, Name: "b"}, "st", "P", "PP", kf, kr, kcp)
	catalyzeRule(b, "mek_dephos_1", site{Type: pp2, Name: "b"}, site{Type: mek, Name: "b"}, "st", "PP", "P", kf, kr, kcd)
	catalyzeRule(b, "mek_dephos_2", site{Type: pp2, Name: "b"}, site{Type: mek, Name: "b"}, "st", "P", "U", kf, kr, kcd)

	mekPP := site{Type: mek, Name: "b", Ctx: []model.SiteArg{model.State("st", "PP")}}
	catalyzeRule(b, "erk_phos_1", mekPP, site{Type: erk, Name: "b"}, "st", "U", "P", kf, kr, kcp)
	catalyzeRule(b, "erk_phos_2", mekPP, site{Type: erk, Name: "b"}, "st", "P", "PP", kf, kr, kcp)
	catalyzeRule(b, "erk_dephos_1", site{Type: pp3, Name: "b"}, site{Type: erk, Name: "b"}, "st", "PP", "P", kf, kr, kcd)
	catalyzeRule(b, "erk_dephos_2", site{Type: pp3, Name: "b"}, site{Type: erk, Name: "b"}, "st", "P", "U", kf, kr, kcd)

	p := func(name string) *model.Parameter { return b.Parameter(name, amounts[name]) }
	b.Initial(model.Complex(grb2.Pattern()), p("GRB2_0"))
	b.Initial(model.Complex(
		grb2.Pattern(model.Bond("bsos", 1)),
		sos.Pattern(model.Bond("bgrb", 1)),
	), p("GRB2_SOS_0"))
	b.Initial(model.Complex(ras.Pattern(model.State("st", "GDP"))), p("RAS_0"))
	b.Initial(model.Complex(raf.Pattern(model.State("st", "U"))), p("RAF_0"))
	b.Initial(model.Complex(mek.Pattern(model.State("st", "U"))), p("MEK_0"))
	b.Initial(model.Complex(erk.Pattern(model.State("st", "U"))), p("ERK_0"))
	b.Initial(model.Complex(pp1.Pattern()), p("PP1_0"))
	b.Initial(model.Complex(pp2.Pattern()), p("PP2_0"))
	b.Initial(model.Complex(pp3.Pattern()), p("PP3_0"))

	b.Observable("obsERKPP", model.Complex(erk.Pattern(model.State("st", "PP"))))
}
