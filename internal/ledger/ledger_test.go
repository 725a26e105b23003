package ledger

import (
	"math/rand"
	"reflect"
	"slices"
	"testing"

	"compta/internal/core"

	"github.com/shopspring/decimal"
)

func row(day int, label string, amount int64, cat core.Category, dir core.Direction, tr core.Transfer) core.TransactionRecord {
	return core.TransactionRecord{
		Date:      core.NewDate(2025, 3, day),
		Label:     label,
		Amount:    decimal.NewFromInt(amount),
		Category:  cat,
		Direction: dir,
		Transfer:  tr,
	}
}

func mustBalance(t *testing.T, b Balances, name string, want int64) {
	t.Helper()
	got, ok := b.Of(name)
	if !ok {
		t.Fatalf("account %q missing from balances", name)
	}
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("balance(%s) = %s, want %d", name, got, want)
	}
}

func scenarioRows() []core.TransactionRecord {
	return []core.TransactionRecord{
		row(1, "Paie", 500, core.Salary, core.Inflow, core.Direct{Account: "A"}),
		row(2, "Virement livret", 100, core.SavingsCat, core.Outflow, core.Move{From: "A", To: "S"}),
		row(3, "Anniversaire", 50, core.Gifts, core.Inflow, core.Direct{Account: "B"}),
	}
}

func TestComputeBalancesScenario(t *testing.T) {
	reg := core.NewAccountRegistry([]string{"A", "B"}, []string{"S"})
	b := ComputeBalances(scenarioRows(), reg)

	mustBalance(t, b, "A", 400)
	mustBalance(t, b, "B", 50)
	mustBalance(t, b, "S", 100)
	if !b.Outflow.Sum.Equal(decimal.NewFromInt(100)) || b.Outflow.Count != 1 {
		t.Fatalf("unexpected outflow counter %+v", b.Outflow)
	}
	if !b.Inflow.Sum.Equal(decimal.NewFromInt(550)) || b.Inflow.Count != 2 {
		t.Fatalf("unexpected inflow counter %+v", b.Inflow)
	}
	if !b.TotalCurrent.Equal(decimal.NewFromInt(450)) || !b.TotalSavings.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected totals current=%s savings=%s", b.TotalCurrent, b.TotalSavings)
	}
}

func TestComputeBalancesTransferConservation(t *testing.T) {
	reg := core.NewAccountRegistry([]string{"C"}, []string{"S"})
	rows := []core.TransactionRecord{
		row(1, "Salaire", 1000, core.Salary, core.Inflow, core.Direct{Account: "C"}),
		row(2, "Épargne", 200, core.SavingsCat, core.Outflow, core.Move{From: "C", To: "S"}),
	}
	b := ComputeBalances(rows, reg)
	mustBalance(t, b, "C", 800)
	mustBalance(t, b, "S", 200)
	if !b.Combined().Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("combined = %s, want 1000", b.Combined())
	}

	// Random sequences: the combined total only moves with non-savings rows.
	rng := rand.New(rand.NewSource(7))
	cats := []core.Category{core.Groceries, core.Salary, core.SavingsCat, core.Rent}
	for iter := 0; iter < 50; iter++ {
		var rows []core.TransactionRecord
		want := decimal.Zero
		for i := 0; i < 30; i++ {
			amt := int64(rng.Intn(500))
			cat := cats[rng.Intn(len(cats))]
			dir := core.Outflow
			if rng.Intn(2) == 0 {
				dir = core.Inflow
			}
			r := row(1+i%28, "r", amt, cat, dir, core.ResolveTransfer(cat, dir, "C", "S"))
			if !cat.IsSavings() {
				want = want.Add(r.SignedAmount())
			}
			rows = append(rows, r)
		}
		got := ComputeBalances(rows, reg).Combined()
		if !got.Equal(want) {
			t.Fatalf("iteration %d: combined %s, want %s", iter, got, want)
		}
	}
}

func TestComputeBalancesIdempotentAndOrderIndependent(t *testing.T) {
	reg := core.NewAccountRegistry([]string{"A", "B"}, []string{"S"})
	rows := scenarioRows()
	first := ComputeBalances(rows, reg)
	second := ComputeBalances(rows, reg)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recomputation differs:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(Aggregate(rows), Aggregate(rows)) {
		t.Fatalf("aggregation differs between runs")
	}

	reversed := slices.Clone(rows)
	slices.Reverse(reversed)
	perm := ComputeBalances(reversed, reg)
	for name, bal := range first.Map() {
		if other, _ := perm.Of(name); !other.Equal(bal) {
			t.Fatalf("balance(%s) changed with row order: %s vs %s", name, bal, other)
		}
	}
}

func TestComputeBalancesOrphanedAccounts(t *testing.T) {
	rows := []core.TransactionRecord{
		row(1, "Paie", 300, core.Salary, core.Inflow, core.Direct{Account: "Old"}),
		row(2, "Vers livret", 100, core.SavingsCat, core.Outflow, core.Move{From: "Old", To: "S"}),
		row(3, "Retrait", 40, core.SavingsCat, core.Inflow, core.Move{From: "S", To: "A"}),
	}
	reg := core.NewAccountRegistry([]string{"A"}, []string{"S"})
	b := ComputeBalances(rows, reg)
	mustBalance(t, b, "A", 40)
	mustBalance(t, b, "S", 60)
	if _, ok := b.Of("Old"); ok {
		t.Fatalf("removed account must not appear in balances")
	}
}

func TestComputeBalancesCountsRecurring(t *testing.T) {
	rows := scenarioRows()
	rows[0].Recurring = true
	rows = append(rows, core.TransactionRecord{
		Date: core.NewDate(2025, 3, 5), Label: "Netflix", Amount: decimal.RequireFromString("13.49"),
		Category: core.Subscriptions, Direction: core.Outflow, Recurring: true,
		Transfer: core.Direct{Account: "A"},
	})
	b := ComputeBalances(rows, core.NewAccountRegistry([]string{"A"}, nil))
	if b.Recurring.Count != 2 || b.Recurring.Sum.String() != "513.49" {
		t.Fatalf("unexpected recurring counter %+v", b.Recurring)
	}
}

func TestAggregate(t *testing.T) {
	rows := []core.TransactionRecord{
		row(1, "Paie", 1000, core.Salary, core.Inflow, core.Direct{Account: "C"}),
		row(2, "Courses", 80, core.Groceries, core.Outflow, core.Direct{Account: "C"}),
		row(3, "Loyer", 600, core.Rent, core.Outflow, core.Direct{Account: "C"}),
		row(4, "Livret", 200, core.SavingsCat, core.Outflow, core.Move{From: "C", To: "S"}),
		row(5, "Courses", 20, core.Groceries, core.Outflow, core.Direct{Account: "C"}),
		row(6, "Remb. courses", 10, core.Groceries, core.Inflow, core.Direct{Account: "C"}),
		row(7, "Rien", 0, core.Leisure, core.Outflow, core.Direct{Account: "C"}),
	}
	b := Aggregate(rows)

	if !b.Totals[core.Groceries].Outflow.Equal(decimal.NewFromInt(100)) ||
		!b.Totals[core.Groceries].Inflow.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected groceries totals %+v", b.Totals[core.Groceries])
	}
	if !b.Totals[core.SavingsCat].Outflow.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("savings rows must be aggregated like any category")
	}
	wantOut := []core.Category{core.Groceries, core.Rent, core.SavingsCat}
	if !slices.Equal(b.OutflowOrder, wantOut) {
		t.Fatalf("outflow order %v, want %v", b.OutflowOrder, wantOut)
	}
	wantIn := []core.Category{core.Salary, core.Groceries}
	if !slices.Equal(b.InflowOrder, wantIn) {
		t.Fatalf("inflow order %v, want %v", b.InflowOrder, wantIn)
	}
	if !b.TotalInflow.Equal(decimal.NewFromInt(1010)) || !b.TotalOutflow.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("unexpected totals in=%s out=%s", b.TotalInflow, b.TotalOutflow)
	}
}

func TestComputeKPIs(t *testing.T) {
	rows := []core.TransactionRecord{
		row(1, "Paie", 2000, core.Salary, core.Inflow, core.Direct{Account: "C"}),
		row(2, "Loyer", 700, core.Rent, core.Outflow, core.Direct{Account: "C"}),
		row(3, "Livret", 500, core.SavingsCat, core.Outflow, core.Move{From: "C", To: "S"}),
		row(4, "Retrait", 100, core.SavingsCat, core.Inflow, core.Move{From: "S", To: "C"}),
	}
	rows[1].Recurring = true
	k := ComputeKPIs(rows)
	if !k.RealIncome.Sum.Equal(decimal.NewFromInt(2000)) || !k.RealOutflow.Sum.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected real totals %+v", k)
	}
	if !k.SavingsNetChange.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("savings net change %s", k.SavingsNetChange)
	}
	if k.SavingsRate.String() != "25" {
		t.Fatalf("savings rate %s, want 25", k.SavingsRate)
	}
	if k.Recurring.Count != 1 || !k.RealNet.Equal(decimal.NewFromInt(1300)) {
		t.Fatalf("unexpected recurring/net %+v", k)
	}
	if ComputeKPIs(nil).SavingsRate.Sign() != 0 {
		t.Fatalf("no income must give a zero savings rate")
	}
}

func TestRecurringByLabelAndSavingsByAccount(t *testing.T) {
	rows := []core.TransactionRecord{
		row(1, "Box", 30, core.Subscriptions, core.Outflow, core.Direct{Account: "C"}),
		row(2, "Assurance", 45, core.Health, core.Outflow, core.Direct{Account: "C"}),
		row(3, "Box", 30, core.Subscriptions, core.Outflow, core.Direct{Account: "C"}),
		row(4, "Livret A", 100, core.SavingsCat, core.Outflow, core.Move{From: "C", To: "Livret"}),
		row(5, "Retrait", 30, core.SavingsCat, core.Inflow, core.Move{From: "Livret", To: "C"}),
		row(6, "PEL", 50, core.SavingsCat, core.Outflow, core.Move{From: "C", To: "PEL"}),
	}
	for i := 0; i < 4; i++ {
		rows[i].Recurring = true
	}
	rec := RecurringByLabel(rows)
	if len(rec) != 2 || rec[0].Label != "Box" || rec[0].Count != 2 || rec[1].Label != "Assurance" {
		t.Fatalf("unexpected recurring breakdown %+v", rec)
	}

	sav := SavingsByAccount(rows)
	if len(sav) != 2 || sav[0].Account != "Livret" || sav[1].Account != "PEL" {
		t.Fatalf("unexpected savings breakdown %+v", sav)
	}
	if !sav[0].Net.Equal(decimal.NewFromInt(70)) || !sav[0].Withdrawals.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected Livret movement %+v", sav[0])
	}
}

func TestMonthlySeries(t *testing.T) {
	byMonth := map[int][]core.TransactionRecord{
		3: {row(1, "Paie", 100, core.Salary, core.Inflow, core.Direct{Account: "C"})},
		12: {row(1, "Cadeaux", 40, core.Gifts, core.Outflow, core.Direct{Account: "C"})},
	}
	s := MonthlySeries(byMonth)
	if len(s) != 12 || s[0].Month != 1 || s[11].Month != 12 {
		t.Fatalf("expected 12 ordered points, got %+v", s)
	}
	if !s[2].RealIncome.Equal(decimal.NewFromInt(100)) || !s[11].RealNet.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("unexpected points %+v %+v", s[2], s[11])
	}
	if !s[5].RealNet.IsZero() {
		t.Fatalf("empty month should be zero")
	}
}
