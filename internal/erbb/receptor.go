package erbb

import (
	"fmt"

	"github.com/lolab-msm/erbbfit/internal/model"
)

// receptorTypes exposes the receptor-layer monomer types to the
// downstream pathway modules. Adaptors dock on the receptor's b site,
// which is free once trans-phosphorylation releases ADP.
type receptorTypes struct {
	er *model.MonomerType
}

// declareReceptorLayer declares ligand binding, receptor dimerization,
// ATP-driven trans-phosphorylation, dephosphorylation, internalization
// of dimers, and endosomal degradation, after Chen et al. 2009.
func declareReceptorLayer(b *model.Builder, amounts map[string]float64) receptorTypes {
	egf := b.Monomer("EGF", []string{"b"}, nil)
	hrg := b.Monomer("HRG", []string{"b"}, nil)
	er := b.Monomer("erbb", []string{"bl", "bd", "b", "ty", "st", "loc"}, map[string][]string{
		"ty":  {"1", "2", "3", "4"},
		"st":  {"U", "P"},
		"loc": {"C", "E"},
	})
	atp := b.Monomer("ATP", []string{"b"}, nil)
	adp := b.Monomer("ADP", nil, nil)
	dep := b.Monomer("DEP", []string{"b"}, nil)
	cpp := b.Monomer("CPP", []string{"b", "loc"}, map[string][]string{"loc": {"C", "E"}})

	// Ligand binding. EGF is specific to ErbB1; HRG binds ErbB3 and
	// ErbB4. ErbB2 has no ligand.
	ligBinds := []struct {
		lig *model.MonomerType
		ty  string
		f   float64
		r   float64
	}{
		{egf, "1", 1e7, 3.3e-2},
		{hrg, "3", 1e7, 7e-2},
		{hrg, "4", 1e7, 7e-2},
	}
	for _, lb := range ligBinds {
		bindRule(b, "lig_bind_"+lb.ty,
			site{Type: lb.lig, Name: "b"},
			site{Type: er, Name: "bl", Ctx: []model.SiteArg{
				model.State("ty", lb.ty),
				model.Unbound("bd"),
				model.State("st", "U"),
				model.State("loc", "C"),
			}},
			lb.f, lb.r)
	}

	// Dimerization of competent monomers: liganded ErbB1/3/4 or bare
	// ErbB2. Pair rates from the Chen dimerization table.
	ligCtx := func(ty string) model.SiteArg {
		if ty == "2" {
			return model.Unbound("bl")
		}
		return model.AnyBond("bl")
	}
	dimPairs := []struct {
		a, c string
		f, r float64
	}{
		{"1", "1", 7.45e-6, 1.6e-1},
		{"2", "1", 3.74e-8, 1.6e-2},
		{"2", "2", 1.67e-10, 1.6e-2},
		{"3", "1", 3.74e-8, 1.6e-2},
		{"3", "2", 1.67e-10, 1.6e-2},
		{"4", "1", 3.74e-8, 1.6e-2},
		{"4", "2", 1.67e-10, 1.6e-2},
	}
	for _, dp := range dimPairs {
		// Homodimer rules are match-once so the dissociation rate keeps
		// its literature value instead of picking up a symmetry factor.
		var opts []model.RuleOption
		if dp.a == dp.c {
			opts = append(opts, model.MatchOnce())
		}
		bindRule(b, "dimerize_"+dp.a+dp.c,
			site{Type: er, Name: "bd", Ctx: []model.SiteArg{
				model.State("ty", dp.a), ligCtx(dp.a),
				model.State("st", "U"), model.State("loc", "C"),
			}},
			site{Type: er, Name: "bd", Ctx: []model.SiteArg{
				model.State("ty", dp.c), ligCtx(dp.c),
				model.State("st", "U"), model.State("loc", "C"),
			}},
			dp.f, dp.r, opts...)
	}

	// ATP loads onto the kinase site of dimerized, unphosphorylated
	// receptors; ErbB3 is kinase-dead and never binds ATP. DEP docks on
	// phosphorylated members to reverse the cycle.
	for _, ty := range []string{"1", "2", "4"} {
		bindRule(b, "atp_bind_"+ty,
			site{Type: atp, Name: "b"},
			site{Type: er, Name: "b", Ctx: []model.SiteArg{
				model.State("ty", ty), model.AnyBond("bd"),
				model.State("st", "U"), model.State("loc", "C"),
			}},
			1.87e-8, 1.0)
		bindRule(b, "dep_bind_"+ty,
			site{Type: dep, Name: "b"},
			site{Type: er, Name: "b", Ctx: []model.SiteArg{
				model.State("ty", ty), model.AnyBond("bd"),
				model.State("st", "P"), model.State("loc", "C"),
			}},
			5e-5, 1e-2)
	}

	// Trans-phosphorylation: an ATP-loaded kinase-competent member
	// phosphorylates both members of its dimer and releases ADP.
	// DEP reverses the reaction for the whole dimer.
	for _, i := range []string{"1", "2", "4"} {
		for _, j := range []string{"1", "2", "3", "4"} {
			b.Rule(fmt.Sprintf("cross_phospho_%s%s", i, j),
				[]model.ComplexPattern{model.Complex(
					atp.Pattern(model.Bond("b", 1)),
					er.Pattern(model.State("ty", i), model.Bond("b", 1), model.Bond("bd", 2), model.State("st", "U")),
					er.Pattern(model.State("ty", j), model.Bond("bd", 2), model.State("st", "U")),
				)},
				[]model.ComplexPattern{
					model.Complex(adp.Pattern()),
					model.Complex(
						er.Pattern(model.Unbound("b"), model.Bond("bd", 1), model.State("st", "P")),
						er.Pattern(model.Bond("bd", 1), model.State("st", "P")),
					),
				},
				b.Parameter(fmt.Sprintf("kcp%s%s", i, j), 1e-1))
			b.Rule(fmt.Sprintf("cross_dephospho_%s%s", i, j),
				[]model.ComplexPattern{model.Complex(
					dep.Pattern(model.Bond("b", 1)),
					er.Pattern(model.State("ty", i), model.Bond("b", 1), model.Bond("bd", 2), model.State("st", "P")),
					er.Pattern(model.State("ty", j), model.Bond("bd", 2), model.State("st", "P")),
				)},
				[]model.ComplexPattern{
					model.Complex(dep.Pattern(model.Unbound("b"))),
					model.Complex(
						er.Pattern(model.Unbound("b"), model.Bond("bd", 1), model.State("st", "U")),
						er.Pattern(model.Bond("bd", 1), model.State("st", "U")),
					),
				},
				b.Parameter(fmt.Sprintf("kcd%s%s", i, j), 1e-1))
		}
	}

	// Phosphorylation flips a member out of the state its cofactor bound
	// at. Stranded cofactors fall off at the usual reverse rates.
	b.Rule("atp_release",
		[]model.ComplexPattern{model.Complex(
			atp.Pattern(model.Bond("b", 1)),
			er.Pattern(model.Bond("b", 1), model.State("st", "P")),
		)},
		[]model.ComplexPattern{
			model.Complex(atp.Pattern(model.Unbound("b"))),
			model.Complex(er.Pattern(model.Unbound("b"))),
		},
		b.Parameter("katp_rel", 1.0))
	b.Rule("dep_release",
		[]model.ComplexPattern{model.Complex(
			dep.Pattern(model.Bond("b", 1)),
			er.Pattern(model.Bond("b", 1), model.State("st", "U")),
		)},
		[]model.ComplexPattern{
			model.Complex(dep.Pattern(model.Unbound("b"))),
			model.Complex(er.Pattern(model.Unbound("b"))),
		},
		b.Parameter("kdep_rel", 1e-2))
	b.Rule("cpp_release",
		[]model.ComplexPattern{model.Complex(
			cpp.Pattern(model.Bond("b", 1)),
			er.Pattern(model.Bond("b", 1), model.State("st", "U")),
		)},
		[]model.ComplexPattern{
			model.Complex(cpp.Pattern(model.Unbound("b"))),
			model.Complex(er.Pattern(model.Unbound("b"))),
		},
		b.Parameter("kcpp_rel", kr))

	// Undecorated dimers shuttle between the plasma membrane (loc C)
	// and endosomes (loc E); endosomal dimers degrade.
	b.RuleReversible("rec_intern",
		[]model.ComplexPattern{model.Complex(
			er.Pattern(model.Bond("bd", 1), model.Unbound("b"), model.State("loc", "C")),
			er.Pattern(model.Bond("bd", 1), model.Unbound("b"), model.State("loc", "C")),
		)},
		[]model.ComplexPattern{model.Complex(
			er.Pattern(model.Bond("bd", 1), model.Unbound("b"), model.State("loc", "E")),
			er.Pattern(model.Bond("bd", 1), model.Unbound("b"), model.State("loc", "E")),
		)},
		b.Parameter("kintf", kintf),
		b.Parameter("kintr", kintr))
	b.Rule("rec_degrade",
		[]model.ComplexPattern{model.Complex(
			er.Pattern(model.Bond("bd", 1), model.State("loc", "E")),
			er.Pattern(model.Bond("bd", 1), model.State("loc", "E")),
		)},
		nil,
		b.Parameter("kdeg", kdeg))

	// Coated-pit protein: docks on a phosphorylated member and drags
	// the dimer into the endosome, then recycles back alone.
	bindRule(b, "cpp_bind",
		site{Type: cpp, Name: "b", Ctx: []model.SiteArg{model.State("loc", "C")}},
		site{Type: er, Name: "b", Ctx: []model.SiteArg{
			model.AnyBond("bd"), model.State("st", "P"), model.State("loc", "C"),
		}},
		kf, kr)
	b.RuleReversible("cpp_intern",
		[]model.ComplexPattern{model.Complex(
			cpp.Pattern(model.Bond("b", 1), model.State("loc", "C")),
			er.Pattern(model.Bond("b", 1), model.Bond("bd", 2), model.State("loc", "C")),
			er.Pattern(model.Bond("bd", 2), model.Unbound("b"), model.State("loc", "C")),
		)},
		[]model.ComplexPattern{model.Complex(
			cpp.Pattern(model.Bond("b", 1), model.State("loc", "E")),
			er.Pattern(model.Bond("b", 1), model.Bond("bd", 2), model.State("loc", "E")),
			er.Pattern(model.Bond("bd", 2), model.Unbound("b"), model.State("loc", "E")),
		)},
		b.Parameter("kcppintf", kintf),
		b.Parameter("kcppintr", kintr))
	b.RuleReversible("cpp_recycle",
		[]model.ComplexPattern{model.Complex(cpp.Pattern(model.Unbound("b"), model.State("loc", "E")))},
		[]model.ComplexPattern{model.Complex(cpp.Pattern(model.Unbound("b"), model.State("loc", "C")))},
		b.Parameter("kcpprecf", kintf),
		b.Parameter("kcpprecr", kintr))

	// Seeds.
	p := func(name string) *model.Parameter { return b.Parameter(name, amounts[name]) }
	b.Initial(model.Complex(egf.Pattern(model.Unbound("b"))), p("EGF_0"))
	b.Initial(model.Complex(hrg.Pattern(model.Unbound("b"))), p("HRG_0"))
	for _, ty := range []string{"1", "2", "3", "4"} {
		b.Initial(model.Complex(er.Pattern(
			model.State("ty", ty), model.State("st", "U"), model.State("loc", "C"),
		)), p("erbb"+ty+"_0"))
	}
	b.Initial(model.Complex(atp.Pattern()), p("ATP_0"))
	b.Initial(model.Complex(dep.Pattern()), p("DEP_0"))
	b.Initial(model.Complex(cpp.Pattern(model.State("loc", "C"))), p("CPP_0"))

	b.Observable("obsErbB1_P", model.Complex(er.Pattern(
		model.State("ty", "1"), model.State("st", "P"),
	)))

	return receptorTypes{er: er}
}
