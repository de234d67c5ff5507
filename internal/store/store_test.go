package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/existflow/goalpost/internal/model"
)

func TestFieldsApply(t *testing.T) {
	d := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	now := d.Add(-time.Hour)
	g := model.Goal{Content: "old", Status: model.StatusNeedHelp}

	err := Fields{
		FieldContent:   "new",
		FieldDeadline:  &d,
		FieldStatus:    model.StatusDone,
		FieldDeleted:   true,
		FieldUpdatedAt: now,
		FieldNick:      "arkk",
	}.Apply(&g)
	if err != nil {
		t.Fatal(err)
	}
	if g.Content != "new" || g.Status != model.StatusDone || !g.Deleted || g.Nick != "arkk" {
		t.Errorf("Apply left %+v", g)
	}
	if g.Deadline == nil || !g.Deadline.Equal(d) || !g.UpdatedAt.Equal(now) {
		t.Errorf("Apply times: deadline=%v updatedAt=%v", g.Deadline, g.UpdatedAt)
	}

	if err := (Fields{FieldDeadline: (*time.Time)(nil)}).Apply(&g); err != nil || g.Deadline != nil {
		t.Errorf("clearing deadline: err=%v deadline=%v", err, g.Deadline)
	}
}

func TestFieldsApplyRejectsBadTypes(t *testing.T) {
	var g model.Goal
	bad := []Fields{
		{FieldStatus: "Done"},
		{FieldDeleted: "yes"},
		{FieldDeadline: time.Now()},
		{FieldCreatedAt: time.Now()},
		{Field("ownerId"): "someone-else"},
	}
	for _, f := range bad {
		if err := f.Apply(&g); err == nil {
			t.Errorf("Apply(%v) should fail", f)
		}
	}
}

func TestFieldsPublicSubset(t *testing.T) {
	f := Fields{FieldContent: "x", FieldUpdatedAt: time.Now(), FieldDeleted: true}
	p := f.Public()
	if p.Has(FieldUpdatedAt) {
		t.Error("projection patch should not carry updatedAt")
	}
	if !p.Has(FieldContent) || !p.Has(FieldDeleted) {
		t.Errorf("Public() = %v", p)
	}
}

func TestFieldsJSON(t *testing.T) {
	d := time.Date(2025, 8, 10, 12, 0, 0, 250000000, time.UTC)
	in := Fields{
		FieldContent:   "ship v1",
		FieldDeadline:  &d,
		FieldStatus:    model.StatusNeedHelp,
		FieldDeleted:   false,
		FieldUpdatedAt: d,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	var a, b model.Goal
	_ = in.Apply(&a)
	if err := out.Apply(&b); err != nil {
		t.Fatal(err)
	}
	if a.Content != b.Content || a.Status != b.Status || !a.Deadline.Equal(*b.Deadline) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		t.Errorf("decoded %+v, want %+v", b, a)
	}
}

func TestFieldsJSONClearedDeadline(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`{"deadline":null}`), &f); err != nil {
		t.Fatal(err)
	}
	v, ok := f[FieldDeadline]
	if !ok {
		t.Fatal("deadline key dropped")
	}
	if d := v.(*time.Time); d != nil {
		t.Fatalf("deadline = %v, want nil", d)
	}

	if err := json.Unmarshal([]byte(`{"ownerId":"x"}`), &f); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestFilterAndOrder(t *testing.T) {
	base := time.Unix(1000, 0)
	goals := []model.Goal{
		{ID: "old", CreatedAt: base},
		{ID: "gone", CreatedAt: base.Add(2 * time.Second), Deleted: true},
		{ID: "new", CreatedAt: base.Add(time.Second)},
	}

	f := NotDeleted()
	var kept []model.Goal
	for _, g := range goals {
		if f.Match(g) {
			kept = append(kept, g)
		}
	}
	NewestFirst().Sort(kept)

	if len(kept) != 2 || kept[0].ID != "new" || kept[1].ID != "old" {
		t.Fatalf("got %+v", kept)
	}

	if !(Filter{}).Match(goals[1]) {
		t.Error("empty filter should match deleted records")
	}
}

func TestPrecondition(t *testing.T) {
	at := time.Unix(5, 0)
	g := model.Goal{UpdatedAt: at}

	var none *Precondition
	if !none.Holds(g) {
		t.Error("nil precondition should hold")
	}
	if !(&Precondition{UpdatedAt: at}).Holds(g) {
		t.Error("matching precondition should hold")
	}
	if (&Precondition{UpdatedAt: at.Add(time.Millisecond)}).Holds(g) {
		t.Error("stale precondition should not hold")
	}
}
