package storage

import (
	"errors"
	"testing"
)

func usersSchema() Schema {
	return Schema{Table: "users", Cols: []Column{
		{Name: "id", Type: IntType, Constraints: []ConstraintType{PrimaryKey}},
		{Name: "name", Type: StringType, Constraints: []ConstraintType{NotNull}},
		{Name: "age", Type: IntType},
		{Name: "score", Type: DoubleType},
	}}
}

func TestCreateDropTable(t *testing.T) {
	db := NewDB()
	if _, err := db.CreateTable(usersSchema()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !db.Exists("users") {
		t.Fatalf("expected users to exist")
	}
	if db.Exists("USERS") {
		t.Fatalf("table names are case-sensitive")
	}
	if _, err := db.CreateTable(usersSchema()); !errors.Is(err, ErrTableExists) {
		t.Fatalf("expected ErrTableExists, got %v", err)
	}
	if err := db.DropTable("users"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := db.DropTable("users"); !errors.Is(err, ErrNoSuchTable) {
		t.Fatalf("expected ErrNoSuchTable, got %v", err)
	}
	if _, err := db.Table("users"); !errors.Is(err, ErrNoSuchTable) {
		t.Fatalf("expected ErrNoSuchTable from Table, got %v", err)
	}
}

func TestCreateTableCopiesColumns(t *testing.T) {
	db := NewDB()
	s := usersSchema()
	tbl, err := db.CreateTable(s)
	if err != nil {
		t.Fatal(err)
	}
	s.Cols[0].Name = "changed"
	if tbl.Cols[0].Name != "id" {
		t.Fatalf("table shares the caller's column slice")
	}
}

func TestInsertValidation(t *testing.T) {
	db := NewDB()
	if _, err := db.CreateTable(usersSchema()); err != nil {
		t.Fatal(err)
	}
	ok := Row{Int(1), Text("Alice"), Int(30), Double(1.5)}
	if err := db.Insert("users", nil, ok); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tests := []struct {
		name string
		row  Row
		want error
	}{
		{"arity", Row{Int(2), Text("Bob")}, ErrType},
		{"text into int", Row{Text("x"), Text("Bob"), Int(1), Null()}, ErrType},
		{"double into int", Row{Int(2), Text("Bob"), Double(2.5), Null()}, ErrType},
		{"not null", Row{Int(2), Null(), Int(1), Null()}, ErrConstraint},
		{"primary key null", Row{Null(), Text("Bob"), Int(1), Null()}, ErrConstraint},
		{"primary key duplicate", Row{Int(1), Text("Bob"), Int(1), Null()}, ErrConstraint},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := db.Insert("users", nil, tc.row)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	tbl, _ := db.Table("users")
	if len(tbl.Rows) != 1 {
		t.Fatalf("rejected rows must not be stored, have %d rows", len(tbl.Rows))
	}
}

func TestInsertWidensIntegerIntoDouble(t *testing.T) {
	db := NewDB()
	if _, err := db.CreateTable(usersSchema()); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert("users", nil, Row{Int(1), Text("Alice"), Int(30), Int(7)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tbl, _ := db.Table("users")
	if got := tbl.Rows[0][3]; got != Double(7) {
		t.Fatalf("expected Double(7), got %v (%s)", got, got.Kind())
	}
}

func TestInsertColumnSubset(t *testing.T) {
	db := NewDB()
	if _, err := db.CreateTable(usersSchema()); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert("users", []string{"name", "id"}, Row{Text("Bob"), Int(2)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tbl, _ := db.Table("users")
	got := tbl.Rows[0]
	if got[0] != Int(2) || got[1] != Text("Bob") || !got[2].IsNull() || !got[3].IsNull() {
		t.Fatalf("unexpected row %v", got)
	}
	if err := db.Insert("users", []string{"nope"}, Row{Int(3)}); err == nil {
		t.Fatalf("expected unknown column error")
	}
	if err := db.Insert("users", []string{"id", "name"}, Row{Int(3)}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
	if err := db.Insert("users", []string{"id", "id"}, Row{Int(3), Int(4)}); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}

func TestUniqueAllowsMultipleNulls(t *testing.T) {
	db := NewDB()
	_, err := db.CreateTable(Schema{Table: "t", Cols: []Column{{Name: "email", Type: StringType, Constraints: []ConstraintType{Unique}}}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := db.Insert("t", nil, Row{Null()}); err != nil {
			t.Fatalf("null %d: %v", i, err)
		}
	}
	if err := db.Insert("t", nil, Row{Text("a@b")}); err != nil {
		t.Fatal(err)
	}
	if err := db.Insert("t", nil, Row{Text("a@b")}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestBooleanAcceptsZeroOrOne(t *testing.T) {
	for _, tc := range []struct {
		v    Value
		want bool
	}{
		{Int(0), true}, {Int(1), true}, {Int(2), false}, {Text("true"), false}, {Null(), true},
	} {
		if got := BoolType.Accepts(tc.v); got != tc.want {
			t.Errorf("BOOLEAN accepts %v = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestTablesSorted(t *testing.T) {
	db := NewDB()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		if _, err := db.CreateTable(Schema{Table: n, Cols: []Column{{Name: "id", Type: IntType}}}); err != nil {
			t.Fatal(err)
		}
	}
	names := db.TableNames()
	if len(names) != 3 || names[0] != "alpha" || names[2] != "zeta" {
		t.Fatalf("unexpected order %v", names)
	}
	if got := db.Tables(); len(got) != 3 || got[1].Name != "mid" {
		t.Fatalf("unexpected tables %v", got)
	}
}

func TestColIndexFirstMatch(t *testing.T) {
	cols := []Column{{Name: "a"}, {Name: "b"}, {Name: "a"}}
	if got := ColIndex(cols, "a"); got != 0 {
		t.Fatalf("expected first match 0, got %d", got)
	}
	if got := ColIndex(cols, "A"); got != -1 {
		t.Fatalf("expected case-sensitive miss, got %d", got)
	}
}

func TestSchemaString(t *testing.T) {
	got := usersSchema().String()
	want := "CREATE TABLE users (id INT PRIMARY KEY, name STRING NOT NULL, age INT, score DOUBLE)"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}
