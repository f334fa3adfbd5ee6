package table

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustAppend(t *testing.T, tb *Table, rows ...Row) {
	t.Helper()
	for _, r := range rows {
		if err := tb.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestProject_ReordersAndRejectsUnknown(t *testing.T) {
	t.Parallel()

	tb := New("t", "a", "b", "c")
	mustAppend(t, tb, Row{1, 2, 3})

	p, err := tb.Project("p", "c", "a")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got := p.Rows[0]; got[0] != 3 || got[1] != 1 {
		t.Fatalf("projected row = %v, want [3 1]", got)
	}

	_, err = tb.Project("p", "zzz")
	var mc *MissingColumnError
	if !errors.As(err, &mc) || mc.Column != "zzz" {
		t.Fatalf("Project unknown column err = %v, want MissingColumnError(zzz)", err)
	}
}

func TestAppend_RejectsWrongWidth(t *testing.T) {
	t.Parallel()

	tb := New("t", "a", "b")
	if err := tb.Append(Row{1}); err == nil {
		t.Fatal("Append with short row: want error")
	}
}

func TestLeftJoin_PreservesCardinality(t *testing.T) {
	t.Parallel()

	sales := New("sales", "order_id", "product_id")
	mustAppend(t, sales,
		Row{"1", "P1"},
		Row{"2", "P9"}, // no match
		Row{"3", nil},  // NULL key
		Row{"4", "P1"},
	)
	products := New("products", "product_id", "product_name")
	mustAppend(t, products, Row{"P1", "Widget"}, Row{"P2", "Gadget"})

	out, err := sales.LeftJoin(products, "product_id")
	if err != nil {
		t.Fatalf("LeftJoin: %v", err)
	}
	if out.Len() != sales.Len() {
		t.Fatalf("join rows = %d, want %d", out.Len(), sales.Len())
	}
	want := []any{"Widget", nil, nil, "Widget"}
	for i, w := range want {
		if got := out.Value(i, "product_name"); got != w {
			t.Fatalf("row %d product_name = %v, want %v", i, got, w)
		}
	}
	if got := len(out.Columns); got != 3 {
		t.Fatalf("columns = %v, want 3 columns", out.Columns)
	}
}

func TestLeftJoin_DuplicateRightKey(t *testing.T) {
	t.Parallel()

	left := New("l", "k")
	mustAppend(t, left, Row{"a"})
	right := New("r", "k", "v")
	mustAppend(t, right, Row{"a", 1}, Row{"a", 2})

	_, err := left.LeftJoin(right, "k")
	var dk *DuplicateKeyError
	if !errors.As(err, &dk) || dk.Key != "a" {
		t.Fatalf("err = %v, want DuplicateKeyError for key a", err)
	}
}

func TestLeftJoin_AmbiguousColumn(t *testing.T) {
	t.Parallel()

	left := New("l", "k", "v")
	right := New("r", "k", "v")
	if _, err := left.LeftJoin(right, "k"); err == nil {
		t.Fatal("want ambiguous column error")
	}
}

func TestSort_MultiKeyNullOrdering(t *testing.T) {
	t.Parallel()

	tb := New("t", "name", "amount")
	mustAppend(t, tb,
		Row{"b", dec("10")},
		Row{nil, dec("30")},
		Row{"a", dec("10")},
		Row{"c", nil},
	)

	if err := tb.Sort(Desc("amount"), Asc("name")); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	want := []any{nil, "a", "b", "c"}
	for i, w := range want {
		if got := tb.Rows[i][0]; got != w {
			t.Fatalf("row %d name = %v, want %v (rows=%v)", i, got, w, tb.Rows)
		}
	}
}

func TestGroupBy_Aggregates(t *testing.T) {
	t.Parallel()

	tb := New("fact", "city", "qty", "amount", "margin")
	mustAppend(t, tb,
		Row{"Paris", int64(2), dec("10.005"), dec("40")},
		Row{"Paris", int64(1), dec("5.00"), nil},
		Row{"Oslo", int64(4), dec("1.10"), dec("10")},
		Row{nil, int64(1), dec("2"), dec("5")},
	)

	out, err := tb.GroupBy(context.Background(), "by_city", []string{"city"}, []Agg{
		Count("qty", "n"),
		Sum("qty", "qty"),
		Sum("amount", "amount"),
		Avg("amount", "avg_amount"),
		Avg("margin", "avg_margin"),
	}, GroupOptions{Partitions: 1, Precision: 2})
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if err := out.Sort(Asc("city")); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("groups = %d, want 3", out.Len())
	}

	// NULL city sorts first and forms its own group.
	if out.Rows[0][0] != nil {
		t.Fatalf("first group key = %v, want nil", out.Rows[0][0])
	}

	paris := out.Rows[2]
	if paris[0] != "Paris" {
		t.Fatalf("row 2 = %v, want Paris", paris)
	}
	if got := paris[1]; got != int64(2) {
		t.Fatalf("count = %v, want 2", got)
	}
	if got := paris[2]; got != int64(3) {
		t.Fatalf("sum(qty) = %v (%T), want int64 3", got, got)
	}
	if got := paris[3].(decimal.Decimal); !got.Equal(dec("15.01")) {
		t.Fatalf("sum(amount) = %s, want 15.01 (half-up)", got)
	}
	if got := paris[4].(decimal.Decimal); !got.Equal(dec("7.50")) {
		t.Fatalf("avg(amount) = %s, want 7.50", got)
	}
	// avg skips NULL margins.
	if got := paris[5].(decimal.Decimal); !got.Equal(dec("40")) {
		t.Fatalf("avg(margin) = %s, want 40", got)
	}
}

func TestGroupBy_AllNullSumIsNull(t *testing.T) {
	t.Parallel()

	tb := New("t", "k", "v")
	mustAppend(t, tb, Row{"a", nil}, Row{"a", nil})

	out, err := tb.GroupBy(context.Background(), "g", []string{"k"},
		[]Agg{Sum("v", "s"), Avg("v", "a"), Count("v", "n")}, GroupOptions{Precision: 2})
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if r := out.Rows[0]; r[1] != nil || r[2] != nil || r[3] != int64(0) {
		t.Fatalf("row = %v, want [a <nil> <nil> 0]", r)
	}
}

func TestGroupBy_PartitionCountDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	tb := New("t", "k", "v")
	for i := 0; i < 500; i++ {
		mustAppend(t, tb, Row{string(rune('a' + i%17)), dec("1.25")})
	}

	run := func(parts int) *Table {
		out, err := tb.GroupBy(context.Background(), "g", []string{"k"},
			[]Agg{Count("v", "n"), Sum("v", "s")}, GroupOptions{Partitions: parts, Precision: 2})
		if err != nil {
			t.Fatalf("GroupBy(%d): %v", parts, err)
		}
		if err := out.Sort(Asc("k")); err != nil {
			t.Fatalf("Sort: %v", err)
		}
		return out
	}

	one, many := run(1), run(8)
	if one.Len() != 17 || many.Len() != 17 {
		t.Fatalf("groups = %d / %d, want 17", one.Len(), many.Len())
	}
	for i := range one.Rows {
		for j := range one.Rows[i] {
			if Compare(one.Rows[i][j], many.Rows[i][j]) != 0 {
				t.Fatalf("row %d col %d: %v != %v", i, j, one.Rows[i][j], many.Rows[i][j])
			}
		}
	}
}

func TestGroupBy_RejectsNonNumericSum(t *testing.T) {
	t.Parallel()

	tb := New("t", "k", "v")
	mustAppend(t, tb, Row{"a", "oops"})
	if _, err := tb.GroupBy(context.Background(), "g", []string{"k"},
		[]Agg{Sum("v", "s")}, GroupOptions{}); err == nil {
		t.Fatal("want error summing strings")
	}
}

func TestConcat_MatchesColumnsByName(t *testing.T) {
	t.Parallel()

	dst := New("d", "a", "b")
	src := New("s", "b", "c")
	mustAppend(t, src, Row{"B", "C"})

	Concat(dst, src)
	if dst.Len() != 1 || dst.Rows[0][0] != nil || dst.Rows[0][1] != "B" {
		t.Fatalf("rows = %v, want [[<nil> B]]", dst.Rows)
	}
}

func TestKinds_WidensAndRejectsMixes(t *testing.T) {
	t.Parallel()

	tb := New("t", "s", "n", "d", "empty")
	mustAppend(t, tb,
		Row{"a", int64(1), nil, nil},
		Row{nil, dec("1.5"), nil, nil},
	)
	kinds, err := tb.Kinds()
	if err != nil {
		t.Fatalf("Kinds: %v", err)
	}
	want := []Kind{KindString, KindDecimal, KindNull, KindNull}
	for i, w := range want {
		if kinds[i] != w {
			t.Fatalf("kind[%d] = %s, want %s", i, kinds[i], w)
		}
	}

	mustAppend(t, tb, Row{int64(3), nil, nil, nil})
	if _, err := tb.Kinds(); err == nil {
		t.Fatal("want error for string/int mix")
	}
}

func TestKinds_DeclaredTypesWin(t *testing.T) {
	t.Parallel()

	tb := New("t", "cost", "qty", "label")
	tb.Types = map[string]Kind{"cost": KindDecimal, "qty": KindDecimal}
	mustAppend(t, tb, Row{nil, int64(2), nil})

	kinds, err := tb.Kinds()
	if err != nil {
		t.Fatalf("Kinds: %v", err)
	}
	want := []Kind{KindDecimal, KindDecimal, KindNull}
	for i, w := range want {
		if kinds[i] != w {
			t.Fatalf("kind[%d] = %s, want %s", i, kinds[i], w)
		}
	}

	tb.Types = map[string]Kind{"qty": KindDate}
	if _, err := tb.Kinds(); err == nil {
		t.Fatal("want error for int values in a declared date column")
	}
}

func TestGroupBy_DeclaresOutputTypes(t *testing.T) {
	t.Parallel()

	tb := New("fact", "city", "qty", "amount")
	tb.Types = map[string]Kind{"city": KindString, "qty": KindInt, "amount": KindDecimal}

	out, err := tb.GroupBy(context.Background(), "agg", []string{"city"}, []Agg{
		Count("qty", "n"),
		Sum("qty", "items"),
		Sum("amount", "revenue"),
		Avg("amount", "avg_amount"),
	}, GroupOptions{Precision: 2})
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("rows = %d, want 0", out.Len())
	}
	kinds, err := out.Kinds()
	if err != nil {
		t.Fatalf("Kinds: %v", err)
	}
	want := []Kind{KindString, KindInt, KindInt, KindDecimal, KindDecimal}
	for i, w := range want {
		if kinds[i] != w {
			t.Fatalf("%s kind = %s, want %s", out.Columns[i], kinds[i], w)
		}
	}
}

func TestMatchKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{" P1 ", "P1", true},
		{"P1", "P1", true},
		{"   ", "", false},
		{nil, "", false},
		{int64(7), "7", true},
	}
	for _, tc := range tests {
		got, ok := MatchKey(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("MatchKey(%#v) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
