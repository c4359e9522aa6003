package wopi

import "testing"

func TestExtraPropertiesCapturesUnknownTopLevelFields(t *testing.T) {
	raw := []byte(`{
		"BaseFileName": "report.docx",
		"Size": 1024,
		"VendorCustomFlag": true,
		"VendorQuota": 42
	}`)

	extra, err := ExtraProperties(raw)
	if err != nil {
		t.Fatalf("ExtraProperties: %v", err)
	}

	if v, ok := extra.Load("VendorCustomFlag"); !ok || v != true {
		t.Fatalf("VendorCustomFlag = %v, %v", v, ok)
	}
	if v, ok := extra.Load("VendorQuota"); !ok || v != float64(42) {
		t.Fatalf("VendorQuota = %v, %v", v, ok)
	}
	if _, ok := extra.Load("BaseFileName"); ok {
		t.Fatal("BaseFileName should not appear in Extra, it is a known FileInfo field")
	}
}

func TestExtraPropertiesRejectsMalformedJSON(t *testing.T) {
	if _, err := ExtraProperties([]byte("not json")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
