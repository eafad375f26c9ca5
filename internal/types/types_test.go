package types

import "testing"

func TestDocumentPK(t *testing.T) {
	doc := Document{"_id": "abc", "name": "widget"}
	pk, ok := doc.PK()
	if !ok || pk != "abc" {
		t.Fatalf("PK() = %q, %v; want abc, true", pk, ok)
	}
}

func TestDocumentPKMissing(t *testing.T) {
	doc := Document{"name": "widget"}
	if _, ok := doc.PK(); ok {
		t.Fatal("PK() reported ok for a document with no _id field")
	}
}

func TestDocumentPKNonString(t *testing.T) {
	doc := Document{"_id": 42}
	if _, ok := doc.PK(); ok {
		t.Fatal("PK() reported ok for a non-string _id field")
	}
}

func TestDocumentClone(t *testing.T) {
	doc := Document{"_id": "abc", "name": "widget"}
	clone := doc.Clone()
	clone["name"] = "gadget"
	if doc["name"] != "widget" {
		t.Fatal("Clone did not produce an independent copy")
	}
}

func TestNamespaceIsReserved(t *testing.T) {
	cases := map[Namespace]bool{
		"users":                       false,
		"_index_:users:name":          true,
		"_reverse_index_:users:name":  true,
		"_index_":                     false,
		"":                            false,
	}
	for ns, want := range cases {
		if got := ns.IsReserved(); got != want {
			t.Errorf("Namespace(%q).IsReserved() = %v, want %v", ns, got, want)
		}
	}
}

func TestErrReservedNamespaceError(t *testing.T) {
	err := &ErrReservedNamespace{Namespace: "_index_:users:name"}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
